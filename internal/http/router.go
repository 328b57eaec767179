package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voice-chat/internal/service"
)

// Handlers agrupa los handlers que cuelgan del router.
type Handlers struct {
	User   *UserHandler
	Chat   *ChatHandler
	Socket *SocketHandler
	Health *HealthHandler
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, jwtServ *service.JWTService, allowedOrigin string, h Handlers) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y CORS.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(allowedOrigin))

	r.GET("/healthz", h.Health.Health)
	r.GET("/ws", h.Socket.Connect)

	api := r.Group("", jsonContentTypeMiddleware())

	auth := api.Group("/auth")
	auth.POST("/register", h.User.Register)
	auth.POST("/login", h.User.Login)
	auth.POST("/refresh", h.User.RefreshToken)
	auth.POST("/logout", h.User.Logout)
	auth.GET("/verify", JWTAuthMiddleware(jwtServ), h.User.Verify)

	sessions := api.Group("/sessions", JWTAuthMiddleware(jwtServ))
	sessions.GET("", h.Chat.ListSessions)
	sessions.POST("", h.Chat.CreateSession)
	sessions.PATCH("/:id", h.Chat.RenameSession)
	sessions.DELETE("/:id", h.Chat.DeleteSession)
	sessions.GET("/:id/messages", h.Chat.ListMessages)
	sessions.POST("/:id/messages", h.Chat.PostMessage)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
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

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(c *gin.Context) {
		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", allowedOrigin)
		header.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		header.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
