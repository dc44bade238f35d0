// Package middleware holds the Gin middleware shared by the linkbio services.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// IsBotKey is the gin context key set by BotFilter.
const IsBotKey = "is_bot"

// botPatterns are lowercase User-Agent substrings of crawlers and link
// preview fetchers.
var botPatterns = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "facebookexternalhit",
	"twitterbot", "linkedinbot", "embedly", "whatsapp",
	"telegrambot", "discordbot", "slackbot", "skypeuripreview",
	"quora link preview", "pinterest", "applebot",
	"semrushbot", "ahrefsbot", "mj12bot", "dotbot",
	"petalbot", "bytespider", "gptbot", "headlesschrome",
}

// BotFilter flags requests from known bots, and requests without a
// User-Agent, under IsBotKey. Handlers still serve them but skip analytics.
func BotFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := strings.ToLower(c.Request.UserAgent())
		if ua == "" || isBot(ua) {
			c.Set(IsBotKey, true)
		}
		c.Next()
	}
}

// IsBot reports whether BotFilter flagged the request.
func IsBot(c *gin.Context) bool {
	return c.GetBool(IsBotKey)
}

func isBot(ua string) bool {
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
