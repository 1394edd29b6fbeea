package merger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
	"github.com/vitalsync/vitalsync-backend/internal/webhook/normalize"
)

// Merge folds one normalized aggregate contribution into the canonical
// per-(user, date) summary row.
//
// With no existing row, all incoming fields are adopted verbatim and the
// sources set becomes the singleton incoming source. With an existing row, a
// field is overwritten only if it is currently unset or the incoming source's
// priority meets the override threshold. The threshold is evaluated against
// the incoming source alone, not against whichever source last set the field;
// that asymmetry is deliberate and matches the audited write history.
func Merge(existing *types.DailySummary, userID uuid.UUID, delta normalize.SummaryDelta) *types.DailySummary {
	if existing == nil {
		fresh := &types.DailySummary{
			ID:             uuid.New(),
			UserID:         userID,
			Date:           delta.Date,
			Steps:          cloneInt64(delta.Steps),
			ActiveMinutes:  cloneInt64(delta.ActiveMinutes),
			CaloriesTotal:  cloneDecimal(delta.CaloriesTotal),
			CaloriesActive: cloneDecimal(delta.CaloriesActive),
			DistanceMeters: cloneDecimal(delta.DistanceMeters),
			Sources:        datatypes.JSONSlice[string]{delta.Source},
			Metadata:       datatypes.JSONMap{},
		}
		for k, v := range delta.Metadata {
			fresh.Metadata[k] = v
		}
		return fresh
	}

	merged := *existing
	if !merged.HasSource(delta.Source) {
		merged.Sources = append(append(datatypes.JSONSlice[string]{}, existing.Sources...), delta.Source)
	}

	override := delta.SourcePriority >= priority.OverrideThreshold
	if delta.Steps != nil && (merged.Steps == nil || override) {
		merged.Steps = cloneInt64(delta.Steps)
	}
	if delta.ActiveMinutes != nil && (merged.ActiveMinutes == nil || override) {
		merged.ActiveMinutes = cloneInt64(delta.ActiveMinutes)
	}
	if delta.CaloriesTotal != nil && (merged.CaloriesTotal == nil || override) {
		merged.CaloriesTotal = cloneDecimal(delta.CaloriesTotal)
	}
	if delta.CaloriesActive != nil && (merged.CaloriesActive == nil || override) {
		merged.CaloriesActive = cloneDecimal(delta.CaloriesActive)
	}
	if delta.DistanceMeters != nil && (merged.DistanceMeters == nil || override) {
		merged.DistanceMeters = cloneDecimal(delta.DistanceMeters)
	}

	if len(delta.Metadata) > 0 {
		meta := datatypes.JSONMap{}
		for k, v := range existing.Metadata {
			meta[k] = v
		}
		for k, v := range delta.Metadata {
			if _, ok := meta[k]; !ok {
				meta[k] = v
			}
		}
		merged.Metadata = meta
	}

	return &merged
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneDecimal(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
