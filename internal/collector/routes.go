package collector

import (
	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/internal/middleware"
)

// RegisterRoutes mounts the insert endpoint under /rest/v1, guarded by the
// anon key and rate limited per client IP.
func RegisterRoutes(router *gin.Engine, h *Handler, anonKey string, limiter gin.HandlerFunc) {
	rest := router.Group("/rest/v1")
	rest.Use(limiter, middleware.APIKey(anonKey))
	rest.POST("/:table", h.Insert)
}
