package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/repos"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

// MetricsService is the read side: best-value lookups, per-day observation
// listings, and daily summaries.
type MetricsService interface {
	BestValue(ctx context.Context, userID uuid.UUID, date string, metric string) (*types.MetricObservation, error)
	ListObservations(ctx context.Context, userID uuid.UUID, date string) ([]types.MetricObservation, error)
	GetSummary(ctx context.Context, userID uuid.UUID, date string) (*types.DailySummary, error)
}

type metricsService struct {
	log         *logger.Logger
	obsRepo     repos.MetricObservationRepo
	summaryRepo repos.DailySummaryRepo
}

func NewMetricsService(log *logger.Logger, obsRepo repos.MetricObservationRepo, summaryRepo repos.DailySummaryRepo) MetricsService {
	return &metricsService{
		log:         log.With("service", "MetricsService"),
		obsRepo:     obsRepo,
		summaryRepo: summaryRepo,
	}
}

func validateDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, apperrors.ErrInvalidArgument)
	}
	return nil
}

func (ms *metricsService) BestValue(ctx context.Context, userID uuid.UUID, date string, metric string) (*types.MetricObservation, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	mt, ok := types.ParseMetricType(metric)
	if !ok {
		return nil, fmt.Errorf("unknown metric type %q: %w", metric, apperrors.ErrInvalidArgument)
	}
	best, err := ms.obsRepo.BestAtSlot(ctx, nil, userID, date, mt)
	if err != nil {
		return nil, fmt.Errorf("failed to load best observation: %w", err)
	}
	if best == nil {
		return nil, apperrors.ErrNotFound
	}
	return best, nil
}

func (ms *metricsService) ListObservations(ctx context.Context, userID uuid.UUID, date string) ([]types.MetricObservation, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	return ms.obsRepo.ListByUserDate(ctx, nil, userID, date)
}

func (ms *metricsService) GetSummary(ctx context.Context, userID uuid.UUID, date string) (*types.DailySummary, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	summary, err := ms.summaryRepo.Get(ctx, nil, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily summary: %w", err)
	}
	if summary == nil {
		return nil, apperrors.ErrNotFound
	}
	return summary, nil
}
