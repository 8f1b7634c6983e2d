package http

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bay-catalog/internal/service"
)

//go:embed static/index.html
var indexHTML []byte

const requestIDHeader = "X-Request-ID"

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	sessions *service.SessionService,
	cookie CookieConfig,
	authH *AuthHandler,
	dataH *DataHandler,
	healthH *HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y sesión.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), SessionMiddleware(logger, sessions, cookie))

	r.GET("/", index)
	if healthH != nil {
		r.GET("/healthz", healthH.Health)
	}

	api := r.Group("/api", jsonContentTypeMiddleware())
	api.POST("/login", authH.Login)
	api.POST("/logout", authH.Logout)
	api.GET("/status", authH.Status)
	api.GET("/data", dataH.GetData)
	api.POST("/data", RequireAdmin(), dataH.UpdateData)

	history := api.Group("/history", RequireAdmin())
	history.GET("", dataH.History)
	history.GET("/:id", dataH.Snapshot)
	history.GET("/:id/diff", dataH.Diff)

	return r
}

func index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
