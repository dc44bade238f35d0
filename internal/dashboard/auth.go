package dashboard

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/linkbio/infrastructure/jwt"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

// LoginRequest is the sign-in body.
type LoginRequest struct {
	Email    string `binding:"required" json:"email"`
	Password string `binding:"required" json:"password"`
}

// AuthHandler signs in the single dashboard owner.
type AuthHandler struct {
	allowedEmail string
	password     []byte
	tokens       *jwt.Manager
	log          infralogger.Logger
}

// NewAuthHandler creates an AuthHandler for allowedEmail.
func NewAuthHandler(allowedEmail, password string, tokens *jwt.Manager, log infralogger.Logger) *AuthHandler {
	return &AuthHandler{
		allowedEmail: strings.TrimSpace(allowedEmail),
		password:     []byte(password),
		tokens:       tokens,
		log:          log,
	}
}

// Login exchanges the owner's credentials for a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	email := strings.TrimSpace(req.Email)
	if !strings.EqualFold(email, h.allowedEmail) {
		h.log.Warn("Dashboard login rejected: email not allowed", infralogger.String("email", email))
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied for this email"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), h.password) != 1 {
		h.log.Warn("Dashboard login rejected: bad password", infralogger.String("email", email))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.tokens.Generate(strings.ToLower(email))
	if err != nil {
		h.log.Error("Failed to issue dashboard token", infralogger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
