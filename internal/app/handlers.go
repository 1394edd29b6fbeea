package app

import (
	"github.com/vitalsync/vitalsync-backend/internal/handlers"
	"github.com/vitalsync/vitalsync-backend/internal/logger"
	"github.com/vitalsync/vitalsync-backend/internal/webhook/signature"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	Webhook *handlers.WebhookHandler
	Metrics *handlers.MetricsHandler
	Link    *handlers.LinkHandler
}

func wireHandlers(log *logger.Logger, cfg Config, serviceset Services) Handlers {
	log.Info("Wiring handlers...")

	verifiers := make(map[string]*signature.Verifier, len(cfg.WebhookSecrets))
	for provider, secret := range cfg.WebhookSecrets {
		verifiers[provider] = signature.New(secret)
	}

	return Handlers{
		Auth:    handlers.NewAuthHandler(serviceset.Auth),
		Webhook: handlers.NewWebhookHandler(log, serviceset.Ingest, verifiers),
		Metrics: handlers.NewMetricsHandler(serviceset.Metrics),
		Link:    handlers.NewLinkHandler(serviceset.Identity),
	}
}
