package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/internal/middleware"
	"github.com/stretchr/testify/assert"
)

func botRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.BotFilter())
	r.GET("/go", func(c *gin.Context) {
		if middleware.IsBot(c) {
			c.String(http.StatusOK, "bot")
			return
		}
		c.String(http.StatusOK, "human")
	})
	return r
}

func TestBotFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"browser", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "human"},
		{"googlebot", "Googlebot/2.1 (+http://www.google.com/bot.html)", "bot"},
		{"link preview", "WhatsApp/2.23.20.0", "bot"},
		{"missing", "", "bot"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/go", http.NoBody)
			if tt.ua != "" {
				req.Header.Set("User-Agent", tt.ua)
			}
			w := httptest.NewRecorder()
			botRouter().ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}

const testRateLimit = 3

func rateRouter(t *testing.T, limit int) *gin.Engine {
	t.Helper()

	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RateLimiter(limit, time.Minute, done))
	r.GET("/rest", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func hit(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/rest", http.NoBody)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	t.Parallel()

	r := rateRouter(t, testRateLimit)
	for i := range testRateLimit {
		assert.Equal(t, http.StatusOK, hit(r, "1.2.3.4:1234").Code, "request %d", i)
	}

	w := hit(r, "1.2.3.4:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	t.Parallel()

	r := rateRouter(t, 1)
	assert.Equal(t, http.StatusOK, hit(r, "1.1.1.1:1234").Code)
	assert.Equal(t, http.StatusOK, hit(r, "2.2.2.2:1234").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(r, "1.1.1.1:1234").Code)
}

func TestAPIKey(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"apikey header", "apikey", "anon-key", http.StatusOK},
		{"bearer token", "Authorization", "Bearer anon-key", http.StatusOK},
		{"wrong key", "apikey", "other", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := gin.New()
			r.POST("/rest/v1/page_visits", middleware.APIKey("anon-key"), func(c *gin.Context) {
				c.Status(http.StatusCreated)
			})

			req := httptest.NewRequest(http.MethodPost, "/rest/v1/page_visits", http.NoBody)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			want := tt.want
			if want == http.StatusOK {
				want = http.StatusCreated
			}
			assert.Equal(t, want, w.Code)
		})
	}
}
