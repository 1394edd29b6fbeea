package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DailySummary is the one merged aggregate row per (user, date). Fields are
// pointers so "unset" is distinguishable from zero: the merge policy only
// overwrites a populated field when the incoming source clears the override
// threshold.
type DailySummary struct {
	ID             uuid.UUID                     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID                     `gorm:"type:uuid;not null;index:idx_daily_summary_user_date,unique,priority:1" json:"user_id"`
	User           *User                         `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Date           string                        `gorm:"type:date;not null;index:idx_daily_summary_user_date,unique,priority:2" json:"date"`
	Steps          *int64                        `gorm:"column:steps" json:"steps,omitempty"`
	ActiveMinutes  *int64                        `gorm:"column:active_minutes" json:"active_minutes,omitempty"`
	CaloriesTotal  *decimal.Decimal              `gorm:"column:calories_total;type:numeric(12,4)" json:"calories_total,omitempty"`
	CaloriesActive *decimal.Decimal              `gorm:"column:calories_active;type:numeric(12,4)" json:"calories_active,omitempty"`
	DistanceMeters *decimal.Decimal              `gorm:"column:distance_meters;type:numeric(12,4)" json:"distance_meters,omitempty"`
	Sources        datatypes.JSONSlice[string]   `gorm:"column:sources;type:jsonb" json:"sources"`
	Metadata       datatypes.JSONMap             `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt      time.Time                     `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time                     `gorm:"not null;default:now()" json:"updated_at"`
}

func (DailySummary) TableName() string { return "daily_summary" }

// HasSource reports whether provider already contributed to this summary.
func (s *DailySummary) HasSource(provider string) bool {
	for _, src := range s.Sources {
		if src == provider {
			return true
		}
	}
	return false
}
