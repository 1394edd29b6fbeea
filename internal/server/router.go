package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/vitalsync/vitalsync-backend/internal/handlers"
	"github.com/vitalsync/vitalsync-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName    string
	AllowOrigins   []string
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	WebhookHandler *handlers.WebhookHandler
	MetricsHandler *handlers.MetricsHandler
	LinkHandler    *handlers.LinkHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware(cfg.ServiceName))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)
	// Providers authenticate with HMAC signatures, not user tokens.
	router.POST("/webhooks/:provider", cfg.WebhookHandler.Receive)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// Metrics
	protected.GET("/api/metrics/best", cfg.MetricsHandler.Best)
	protected.GET("/api/metrics", cfg.MetricsHandler.List)
	protected.GET("/api/summary", cfg.MetricsHandler.Summary)
	// Device links
	protected.POST("/api/links", cfg.LinkHandler.Create)
	protected.GET("/api/links", cfg.LinkHandler.List)

	return router
}
