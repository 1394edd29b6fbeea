package types

import (
	"time"

	"github.com/google/uuid"
)

// DeviceLink maps a provider's external user id onto an internal user. The
// orchestrator consults it for every delivery; a delivery for an unlinked
// external id is dropped (logged, never partially persisted).
type DeviceLink struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User           *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Provider       string    `gorm:"column:provider;not null;index:idx_device_link_provider_external,unique,priority:1" json:"provider"`
	ExternalUserID string    `gorm:"column:external_user_id;not null;index:idx_device_link_provider_external,unique,priority:2" json:"external_user_id"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DeviceLink) TableName() string { return "device_link" }
