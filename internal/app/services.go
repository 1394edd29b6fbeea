package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/services"
)

type Services struct {
	Auth     services.AuthService
	Identity services.IdentityService
	Ingest   services.IngestService
	Metrics  services.MetricsService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	table := priority.Defaults()
	if cfg.PriorityTablePath != "" {
		loaded, err := priority.LoadFile(cfg.PriorityTablePath)
		if err != nil {
			return Services{}, fmt.Errorf("load priority table: %w", err)
		}
		table = loaded
		log.Info("Priority table loaded", "path", cfg.PriorityTablePath)
	}

	var locker services.MergeLocker
	if clients.Redis != nil {
		locker = services.NewRedisMergeLocker(log, clients.Redis)
	} else {
		locker = services.NewLocalMergeLocker()
	}

	auth := services.NewAuthService(
		db,
		log,
		reposet.User,
		reposet.UserToken,
		cfg.JWTSecretKey,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)
	identity := services.NewIdentityService(log, reposet.DeviceLink, reposet.User)
	ingest := services.NewIngestService(
		db,
		log,
		table,
		identity,
		locker,
		reposet.RawEvent,
		reposet.MetricObservation,
		reposet.DailySummary,
	)
	metrics := services.NewMetricsService(log, reposet.MetricObservation, reposet.DailySummary)

	return Services{
		Auth:     auth,
		Identity: identity,
		Ingest:   ingest,
		Metrics:  metrics,
	}, nil
}
