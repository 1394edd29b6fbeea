package repos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

type DeviceLinkRepo interface {
	// GetByExternal resolves (provider, external user id) to a link, or nil
	// when no link exists.
	GetByExternal(ctx context.Context, tx *gorm.DB, provider, externalUserID string) (*types.DeviceLink, error)
	// Upsert creates a link, or repoints an existing (provider, external id)
	// pair at a different user.
	Upsert(ctx context.Context, tx *gorm.DB, link *types.DeviceLink) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]types.DeviceLink, error)
}

type deviceLinkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDeviceLinkRepo(db *gorm.DB, baseLog *logger.Logger) DeviceLinkRepo {
	return &deviceLinkRepo{
		db:  db,
		log: baseLog.With("repo", "DeviceLinkRepo"),
	}
}

func (r *deviceLinkRepo) GetByExternal(ctx context.Context, tx *gorm.DB, provider, externalUserID string) (*types.DeviceLink, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.DeviceLink
	err := transaction.WithContext(ctx).
		Where("provider = ? AND external_user_id = ?", strings.ToLower(provider), externalUserID).
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

func (r *deviceLinkRepo) Upsert(ctx context.Context, tx *gorm.DB, link *types.DeviceLink) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.Provider = strings.ToLower(link.Provider)
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "updated_at"}),
		}).
		Create(link).Error
}

func (r *deviceLinkRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]types.DeviceLink, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []types.DeviceLink
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
