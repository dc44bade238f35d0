package dashboard

import (
	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/infrastructure/jwt"
)

const subjectKey = "subject"

// RegisterRoutes mounts login and the token-protected dashboard endpoints.
func RegisterRoutes(router *gin.Engine, auth *AuthHandler, h *Handler, tokens *jwt.Manager) {
	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", auth.Login)

	dash := v1.Group("/dashboard")
	dash.Use(tokens.Middleware(), func(c *gin.Context) {
		if claims, ok := jwt.GetClaims(c); ok {
			c.Set(subjectKey, claims.Sub)
		}
		c.Next()
	})
	dash.GET("/me", h.Me)
	dash.GET("/stats", h.Stats)
	dash.GET("/export", h.Export)
}
