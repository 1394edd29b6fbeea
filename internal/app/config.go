package app

import (
	"strings"
	"time"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	"github.com/vitalsync/vitalsync-backend/internal/utils"
)

type Config struct {
	ServiceName     string
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// PriorityTablePath points at an optional YAML overlay for the
	// source-priority ranking. Empty means built-in defaults.
	PriorityTablePath string
	AllowOrigins      []string
	// WebhookSecrets holds one HMAC shared secret per provider. A provider
	// without a secret cannot deliver.
	WebhookSecrets map[string]string
}

var webhookProviders = []string{
	"whoop", "oura", "garmin", "fitbit", "terra", "apple_health", "manual", "zepp",
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTLSeconds := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTLSeconds := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	priorityTablePath := utils.GetEnv("PRIORITY_TABLE_PATH", "", log)
	origins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)

	secrets := make(map[string]string, len(webhookProviders))
	for _, provider := range webhookProviders {
		envKey := "WEBHOOK_SECRET_" + strings.ToUpper(provider)
		if secret := utils.GetEnv(envKey, "", log); secret != "" {
			secrets[provider] = secret
		}
	}

	return Config{
		ServiceName:       utils.GetEnv("SERVICE_NAME", "vitalsync-backend", log),
		JWTSecretKey:      jwtSecretKey,
		AccessTokenTTL:    time.Duration(accessTokenTTLSeconds) * time.Second,
		RefreshTokenTTL:   time.Duration(refreshTokenTTLSeconds) * time.Second,
		PriorityTablePath: priorityTablePath,
		AllowOrigins:      strings.Split(origins, ","),
		WebhookSecrets:    secrets,
	}
}
