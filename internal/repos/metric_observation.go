package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

type MetricObservationRepo interface {
	// ListSlot returns every source's row at one (user, date, metric) slot.
	ListSlot(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string, metric types.MetricType) ([]types.MetricObservation, error)
	// UpsertBySource writes an observation, collapsing onto the existing row
	// for the same (user, date, metric, source) if one exists. Concurrent
	// writes from the same source race into a single row via the uniqueness
	// constraint.
	UpsertBySource(ctx context.Context, tx *gorm.DB, row *types.MetricObservation) error
	// BestAtSlot returns the authoritative value for a slot: candidates
	// ordered by (source_priority desc, recorded_at desc), first one.
	BestAtSlot(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string, metric types.MetricType) (*types.MetricObservation, error)
	ListByUserDate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string) ([]types.MetricObservation, error)
}

type metricObservationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetricObservationRepo(db *gorm.DB, baseLog *logger.Logger) MetricObservationRepo {
	return &metricObservationRepo{
		db:  db,
		log: baseLog.With("repo", "MetricObservationRepo"),
	}
}

func (r *metricObservationRepo) ListSlot(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string, metric types.MetricType) ([]types.MetricObservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.MetricObservation
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND date = ? AND metric_type = ?", userID, date, metric).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *metricObservationRepo) UpsertBySource(ctx context.Context, tx *gorm.DB, row *types.MetricObservation) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}, {Name: "metric_type"}, {Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"value_numeric", "source_priority", "recorded_at", "updated_at",
			}),
		}).
		Create(row).Error
}

func (r *metricObservationRepo) BestAtSlot(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string, metric types.MetricType) (*types.MetricObservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.MetricObservation
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND date = ? AND metric_type = ?", userID, date, metric).
		Order("source_priority DESC, recorded_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *metricObservationRepo) ListByUserDate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string) ([]types.MetricObservation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.MetricObservation
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Order("metric_type ASC, source_priority DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
