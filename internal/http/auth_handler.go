package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bay-catalog/internal/service"
)

// AuthHandler mantiene dependencias para login, logout y status.
type AuthHandler struct {
	logger   *zap.Logger
	sessions *service.SessionService
	cookie   CookieConfig
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, sessions *service.SessionService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		sessions: sessions,
		cookie:   cookie,
	}
}

// Login maneja POST /api/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request"})
		return
	}

	token, err := h.sessions.Login(c.ClientIP(), req.Password)
	switch {
	case err == nil:
		setSessionCookie(c, h.cookie, token)
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, service.ErrUnauthorized):
		h.logger.Warn("admin login failed", zap.String("client_ip", c.ClientIP()))
		setSessionCookie(c, h.cookie, token)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid password"})
	case errors.Is(err, service.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "too many login attempts"})
	default:
		h.logger.Error("session issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "could not login"})
	}
}

// Logout maneja POST /api/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cookie.Name); err == nil && token != "" {
		if err := h.sessions.Logout(token); err != nil {
			h.logger.Warn("session revoke failed", zap.Error(err))
		}
	}
	clearSessionCookie(c, h.cookie)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status maneja GET /api/status.
func (h *AuthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"is_admin": IsAdmin(c)})
}
