package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts tracker outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Inserts  *prometheus.CounterVec
	Disabled *prometheus.CounterVec
}

// NewMetrics registers the tracker metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Inserts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkbio",
			Subsystem: "tracking",
			Name:      "inserts_total",
			Help:      "Remote analytics inserts by table and outcome",
		}, []string{"table", "outcome"}),
		Disabled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkbio",
			Subsystem: "tracking",
			Name:      "disabled_total",
			Help:      "Trackers constructed in disabled mode by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) observeInsert(table string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Inserts.WithLabelValues(table, outcome).Inc()
}

func (m *Metrics) observeDisabled(reason string) {
	if m == nil {
		return
	}
	m.Disabled.WithLabelValues(reason).Inc()
}
