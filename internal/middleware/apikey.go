package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKey accepts requests whose apikey header, or Bearer token, equals key.
func APIKey(key string) gin.HandlerFunc {
	expected := []byte(key)

	return func(c *gin.Context) {
		presented := c.GetHeader("apikey")
		if presented == "" {
			presented, _ = strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid API key",
			})
			return
		}
		c.Next()
	}
}
