package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	httpHandler "story-relay/internal/handler/http"
	"story-relay/internal/middleware"
)

// Handlers 汇总路由需要的全部 HTTP handler
type Handlers struct {
	Auth     *httpHandler.AuthHandler
	Room     *httpHandler.RoomHandler
	Public   *httpHandler.PublicHandler
	Document *httpHandler.DocumentHandler
}

// NewRouter 创建 Gin Engine，挂载中间件和 /api 路由
func NewRouter(cfg *Config, log *logrus.Logger, h Handlers, limiter middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RateLimit(limiter, cfg.RateLimitMax, cfg.RateLimitWindow))

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	requireAuth := middleware.Auth(cfg.JWTAccessSecret)
	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/signup", h.Auth.Signup)
		authRoutes.POST("/login", h.Auth.Login)
		authRoutes.POST("/google", h.Auth.Google)
		authRoutes.POST("/refresh", h.Auth.Refresh)
		authRoutes.POST("/logout", h.Auth.Logout)
	}
	api.GET("/me", requireAuth, h.Auth.Me)

	roomRoutes := api.Group("/story-rooms", requireAuth)
	{
		roomRoutes.POST("", h.Room.CreateRoom)
		roomRoutes.GET("/:id", h.Room.GetRoom)
		roomRoutes.POST("/:id/join", h.Room.JoinRoom)
		roomRoutes.POST("/:id/start", h.Room.StartRoom)
		roomRoutes.POST("/:id/finish", h.Room.FinishRoom)
		roomRoutes.POST("/:id/publish", h.Room.PublishRoom)
		roomRoutes.POST("/:id/turn", h.Room.SubmitTurn)
		roomRoutes.POST("/:id/skip", h.Room.SkipTurn)
	}

	docRoutes := api.Group("/docs", requireAuth)
	{
		docRoutes.POST("/create", h.Document.CreateDocument)
		docRoutes.GET("", h.Document.ListDocuments)
		docRoutes.GET("/:id", h.Document.GetDocument)
		docRoutes.PUT("/:id", h.Document.UpdateDocument)
		docRoutes.DELETE("/:id", h.Document.DeleteDocument)
	}

	api.GET("/public/story/:slug", h.Public.GetStory)
	return router
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			entry.Error(msg)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
