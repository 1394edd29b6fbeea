package app

import (
	"gorm.io/gorm"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	"github.com/vitalsync/vitalsync-backend/internal/repos"
)

type Repos struct {
	User              repos.UserRepo
	UserToken         repos.UserTokenRepo
	DeviceLink        repos.DeviceLinkRepo
	MetricObservation repos.MetricObservationRepo
	DailySummary      repos.DailySummaryRepo
	RawEvent          repos.RawEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:              repos.NewUserRepo(db, log),
		UserToken:         repos.NewUserTokenRepo(db, log),
		DeviceLink:        repos.NewDeviceLinkRepo(db, log),
		MetricObservation: repos.NewMetricObservationRepo(db, log),
		DailySummary:      repos.NewDailySummaryRepo(db, log),
		RawEvent:          repos.NewRawEventRepo(db, log),
	}
}
