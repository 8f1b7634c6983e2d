package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bay-catalog/internal/service"
)

const sessionClaimsKey = "session_claims"

// CookieConfig describe la cookie que transporta el token de sesión.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// SessionMiddleware lee la cookie de sesión y guarda los claims en el contexto.
// Sin cookie (o con una inválida) la petición sigue como anónima.
func SessionMiddleware(logger *zap.Logger, sessions *service.SessionService, cookie CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookie.Name)
		if err != nil || token == "" {
			c.Next()
			return
		}
		claims, err := sessions.Parse(token)
		if err != nil {
			logger.Debug("discarding session cookie", zap.Error(err))
			clearSessionCookie(c, cookie)
			c.Next()
			return
		}
		c.Set(sessionClaimsKey, claims)
		c.Next()
	}
}

// RequireAdmin corta con 403 antes del handler si la sesión no es admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "access denied"})
			return
		}
		c.Next()
	}
}

// GetSession obtiene los claims de la sesión desde el contexto.
func GetSession(c *gin.Context) (service.SessionClaims, bool) {
	val, ok := c.Get(sessionClaimsKey)
	if !ok {
		return service.SessionClaims{}, false
	}
	claims, ok := val.(service.SessionClaims)
	return claims, ok
}

func IsAdmin(c *gin.Context) bool {
	claims, ok := GetSession(c)
	return ok && claims.IsAdmin
}

func setSessionCookie(c *gin.Context, cookie CookieConfig, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, token, int(cookie.MaxAge.Seconds()), "/", "", cookie.Secure, true)
}

func clearSessionCookie(c *gin.Context, cookie CookieConfig) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, "", -1, "/", "", cookie.Secure, true)
}
