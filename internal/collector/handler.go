// Package collector accepts analytics inserts over a PostgREST compatible
// endpoint and queues them for batched storage.
package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/internal/domain"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

// maxBodyBytes bounds a single insert request.
const maxBodyBytes = 256 << 10

var errEmptyBody = errors.New("request body is empty")

// Queue accepts records for storage without blocking.
type Queue interface {
	Send(rec domain.Record) bool
}

// Handler serves POST /rest/v1/:table.
type Handler struct {
	queue   Queue
	log     infralogger.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(queue Queue, log infralogger.Logger, metrics *Metrics) *Handler {
	return &Handler{
		queue:   queue,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

// Insert decodes one record or an array of records for the table in the
// path, validates them and queues them. The whole request is rejected when a
// record is invalid.
func (h *Handler) Insert(c *gin.Context) {
	table := c.Param("table")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"message": fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"message": "could not read body"})
		return
	}

	var records []domain.Record
	switch table {
	case domain.TablePageVisits:
		records, err = decodeRecords(body, h.normalizeVisit)
	case domain.TableLinkClicks:
		records, err = decodeRecords(body, h.normalizeClick)
	default:
		c.JSON(http.StatusNotFound, gin.H{
			"message": fmt.Sprintf("relation %q does not exist", table),
			"code":    "42P01",
		})
		return
	}
	if err != nil {
		h.metrics.observe(table, outcomeInvalid, 1)
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error(), "code": "22023"})
		return
	}

	for i, rec := range records {
		if !h.queue.Send(rec) {
			dropped := len(records) - i
			h.metrics.observe(table, outcomeDropped, dropped)
			h.log.Warn("Collector buffer full, dropping records",
				infralogger.String("table", table),
				infralogger.Int("dropped", dropped),
			)
			c.Header("Retry-After", "1")
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "buffer full, retry later"})
			return
		}
	}

	h.metrics.observe(table, outcomeAccepted, len(records))
	c.Status(http.StatusCreated)
}

// decodeRecords accepts a JSON object or array of T and normalizes each.
func decodeRecords[T any](body []byte, normalize func(*T) error) ([]domain.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyBody
	}

	var items []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
	} else {
		var item T
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return nil, fmt.Errorf("invalid JSON object: %w", err)
		}
		items = []T{item}
	}
	if len(items) == 0 {
		return nil, errEmptyBody
	}

	records := make([]domain.Record, 0, len(items))
	for i := range items {
		if err := normalize(&items[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rec, ok := any(items[i]).(domain.Record)
		if !ok {
			return nil, fmt.Errorf("row %d: not a record", i)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (h *Handler) normalizeVisit(v *domain.PageVisit) error {
	if v.SessionID == "" {
		return errors.New("session_id is required")
	}
	v.UserAgent = domain.TruncateUserAgent(v.UserAgent)
	if v.Referrer != nil && *v.Referrer == "" {
		v.Referrer = nil
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = h.now().UTC()
	}
	return nil
}

func (h *Handler) normalizeClick(cl *domain.LinkClick) error {
	if cl.LinkID == "" {
		return errors.New("link_id is required")
	}
	if cl.SessionID == "" {
		return errors.New("session_id is required")
	}
	cl.UserAgent = domain.TruncateUserAgent(cl.UserAgent)
	if cl.Referrer != nil && *cl.Referrer == "" {
		cl.Referrer = nil
	}
	if cl.ClickedAt.IsZero() {
		cl.ClickedAt = h.now().UTC()
	}
	return nil
}
