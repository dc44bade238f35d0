package page

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/internal/middleware"
)

// RegisterRoutes mounts the landing page API. When staticDir is set,
// unmatched paths are served from it.
func RegisterRoutes(router *gin.Engine, h *Handler, staticDir string) {
	router.GET("/go/:linkID", middleware.BotFilter(), h.Redirect)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.BotFilter())
	v1.GET("/page", h.Page)
	v1.POST("/consent", h.Consent)
	v1.POST("/clicks/:linkID", h.Click)

	if staticDir != "" {
		router.NoRoute(gin.WrapH(http.FileServer(http.Dir(staticDir))))
	}
}
