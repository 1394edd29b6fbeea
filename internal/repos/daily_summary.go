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

type DailySummaryRepo interface {
	Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string) (*types.DailySummary, error)
	// Upsert persists a merged summary, keyed on (user_id, date).
	Upsert(ctx context.Context, tx *gorm.DB, row *types.DailySummary) error
}

type dailySummaryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDailySummaryRepo(db *gorm.DB, baseLog *logger.Logger) DailySummaryRepo {
	return &dailySummaryRepo{
		db:  db,
		log: baseLog.With("repo", "DailySummaryRepo"),
	}
}

func (r *dailySummaryRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string) (*types.DailySummary, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.DailySummary
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
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

func (r *dailySummaryRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.DailySummary) error {
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
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"steps", "active_minutes", "calories_total", "calories_active",
				"distance_meters", "sources", "metadata", "updated_at",
			}),
		}).
		Create(row).Error
}
