package dashboard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

const maxDays = 365

// StatsProvider produces dashboard statistics.
type StatsProvider interface {
	Stats(ctx context.Context, days int) (*Stats, error)
}

// Handler serves the dashboard statistics endpoints.
type Handler struct {
	stats       StatsProvider
	defaultDays int
	log         infralogger.Logger
}

// NewHandler creates a Handler. defaultDays applies when ?days is absent.
func NewHandler(stats StatsProvider, defaultDays int, log infralogger.Logger) *Handler {
	return &Handler{stats: stats, defaultDays: defaultDays, log: log}
}

func (h *Handler) days(c *gin.Context) (int, bool) {
	raw := c.Query("days")
	if raw == "" {
		return h.defaultDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 365"})
		return 0, false
	}
	return days, true
}

func (h *Handler) load(c *gin.Context) (*Stats, bool) {
	days, ok := h.days(c)
	if !ok {
		return nil, false
	}

	stats, err := h.stats.Stats(c.Request.Context(), days)
	if err != nil {
		h.log.Error("Failed to load dashboard stats", infralogger.Int("days", days), infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return nil, false
	}
	return stats, true
}

// Stats returns the statistics as JSON.
func (h *Handler) Stats(c *gin.Context) {
	stats, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Export returns the statistics as an xlsx workbook.
func (h *Handler) Export(c *gin.Context) {
	stats, ok := h.load(c)
	if !ok {
		return
	}

	filename := "linkbio-stats-" + stats.GeneratedAt.Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)

	if err := WriteWorkbook(c.Writer, stats); err != nil {
		h.log.Error("Failed to write dashboard export", infralogger.Error(err))
		_ = c.Error(err)
	}
}

// Me returns the signed-in subject.
func (h *Handler) Me(c *gin.Context) {
	sub := c.GetString(subjectKey)
	c.JSON(http.StatusOK, gin.H{"email": sub, "time": time.Now().UTC()})
}
