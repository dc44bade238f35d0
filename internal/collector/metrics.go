package collector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeAccepted = "accepted"
	outcomeDropped  = "dropped"
	outcomeInvalid  = "invalid"
)

// Metrics counts collector activity. A nil *Metrics records nothing.
type Metrics struct {
	Records     *prometheus.CounterVec
	Flushed     *prometheus.CounterVec
	BufferDepth prometheus.GaugeFunc
}

// NewMetrics registers the collector metrics with reg. depth reports the
// current buffer length.
func NewMetrics(reg prometheus.Registerer, depth func() float64) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkbio",
			Subsystem: "collector",
			Name:      "records_total",
			Help:      "Records received by table and outcome",
		}, []string{"table", "outcome"}),
		Flushed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkbio",
			Subsystem: "collector",
			Name:      "flushed_rows_total",
			Help:      "Rows written to PostgreSQL by table and outcome",
		}, []string{"table", "outcome"}),
		BufferDepth: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "linkbio",
			Subsystem: "collector",
			Name:      "buffer_depth",
			Help:      "Records waiting for the next flush",
		}, depth),
	}
}

func (m *Metrics) observe(table, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Records.WithLabelValues(table, outcome).Add(float64(n))
}

// ObserveFlush matches storage.Store.OnFlush.
func (m *Metrics) ObserveFlush(table string, rows int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Flushed.WithLabelValues(table, outcome).Add(float64(rows))
}
