package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RawEvent is the append-only audit trail: one row per accepted webhook
// delivery, holding the exact provider payload for replay and debugging.
// Rows are never updated or deleted by this service.
type RawEvent struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DeliveryID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"delivery_id"`
	Provider       string         `gorm:"column:provider;not null;index" json:"provider"`
	ExternalUserID string         `gorm:"column:external_user_id;index" json:"external_user_id"`
	UserID         *uuid.UUID     `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Payload        datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	ReceivedAt     time.Time      `gorm:"column:received_at;not null" json:"received_at"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (RawEvent) TableName() string { return "raw_event" }
