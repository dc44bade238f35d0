package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GenerateAndValidate(t *testing.T) {
	t.Parallel()

	m := jwt.NewManager("test-secret", time.Hour)
	token, err := m.Generate("owner@example.com")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", claims.Sub)
}

func TestManager_ValidateWrongSecret(t *testing.T) {
	t.Parallel()

	token, err := jwt.NewManager("secret-a", time.Hour).Generate("owner@example.com")
	require.NoError(t, err)

	_, err = jwt.NewManager("secret-b", time.Hour).Validate(token)
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestManager_ValidateExpired(t *testing.T) {
	t.Parallel()

	token, err := jwt.NewManager("s", -time.Minute).Generate("owner@example.com")
	require.NoError(t, err)

	_, err = jwt.NewManager("s", time.Hour).Validate(token)
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	m := jwt.NewManager("test-secret", time.Hour)
	valid, err := m.Generate("owner@example.com")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + valid, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.GET("/private", m.Middleware(), func(c *gin.Context) {
				claims, ok := jwt.GetClaims(c)
				if !ok {
					c.Status(http.StatusInternalServerError)
					return
				}
				c.String(http.StatusOK, claims.Sub)
			})

			req := httptest.NewRequest(http.MethodGet, "/private", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
