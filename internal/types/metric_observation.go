package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetricType identifies a canonical point metric. Values are shared across
// all providers; normalizers map vendor fields onto these.
type MetricType string

const (
	MetricRecoveryScore     MetricType = "recovery_score"
	MetricHRV               MetricType = "hrv"
	MetricRestingHR         MetricType = "resting_hr"
	MetricSleepScore        MetricType = "sleep_score"
	MetricSleepDuration     MetricType = "sleep_duration"
	MetricWeight            MetricType = "weight"
	MetricBodyFatPercentage MetricType = "body_fat_percentage"
	MetricBMI               MetricType = "bmi"
	MetricSpO2              MetricType = "spo2"
	MetricSkinTemp          MetricType = "skin_temp"
	MetricStrain            MetricType = "strain"
	MetricRespiratoryRate   MetricType = "respiratory_rate"
	MetricVO2Max            MetricType = "vo2_max"
)

var metricTypes = map[MetricType]struct{}{
	MetricRecoveryScore:     {},
	MetricHRV:               {},
	MetricRestingHR:         {},
	MetricSleepScore:        {},
	MetricSleepDuration:     {},
	MetricWeight:            {},
	MetricBodyFatPercentage: {},
	MetricBMI:               {},
	MetricSpO2:              {},
	MetricSkinTemp:          {},
	MetricStrain:            {},
	MetricRespiratoryRate:   {},
	MetricVO2Max:            {},
}

// ParseMetricType validates a caller-supplied metric name.
func ParseMetricType(s string) (MetricType, bool) {
	mt := MetricType(s)
	_, ok := metricTypes[mt]
	return mt, ok
}

// MetricObservation is one device's report of one metric for one user/day.
// At most one row exists per (user_id, date, metric_type, source); different
// sources coexist at the same slot so cross-device history is preserved.
// The authoritative value at a slot is computed on read by ordering
// candidates on (source_priority desc, recorded_at desc).
type MetricObservation struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_observation_slot_source,unique,priority:1" json:"user_id"`
	User           *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Date           string          `gorm:"type:date;not null;index:idx_observation_slot_source,unique,priority:2" json:"date"`
	MetricType     MetricType      `gorm:"column:metric_type;not null;index:idx_observation_slot_source,unique,priority:3" json:"metric_type"`
	Value          decimal.Decimal `gorm:"column:value_numeric;type:numeric(12,4);not null" json:"value"`
	Source         string          `gorm:"column:source;not null;index:idx_observation_slot_source,unique,priority:4" json:"source"`
	SourcePriority int             `gorm:"column:source_priority;not null" json:"source_priority"`
	RecordedAt     time.Time       `gorm:"column:recorded_at;not null" json:"recorded_at"`
	CreatedAt      time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (MetricObservation) TableName() string { return "metric_observation" }
