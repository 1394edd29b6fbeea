package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

type RawEventRepo interface {
	// Append writes one audit row. The table is append-only: there is no
	// update or delete path.
	Append(ctx context.Context, tx *gorm.DB, row *types.RawEvent) error
	ListByDelivery(ctx context.Context, tx *gorm.DB, deliveryID uuid.UUID) ([]types.RawEvent, error)
}

type rawEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawEventRepo(db *gorm.DB, baseLog *logger.Logger) RawEventRepo {
	return &rawEventRepo{
		db:  db,
		log: baseLog.With("repo", "RawEventRepo"),
	}
}

func (r *rawEventRepo) Append(ctx context.Context, tx *gorm.DB, row *types.RawEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now().UTC()
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *rawEventRepo) ListByDelivery(ctx context.Context, tx *gorm.DB, deliveryID uuid.UUID) ([]types.RawEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.RawEvent
	err := transaction.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
