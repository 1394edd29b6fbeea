package app

import (
	"github.com/gin-gonic/gin"

	"github.com/vitalsync/vitalsync-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:    cfg.ServiceName,
		AllowOrigins:   cfg.AllowOrigins,
		AuthHandler:    handlerset.Auth,
		AuthMiddleware: mw.Auth,
		WebhookHandler: handlerset.Webhook,
		MetricsHandler: handlerset.Metrics,
		LinkHandler:    handlerset.Link,
	})
}
