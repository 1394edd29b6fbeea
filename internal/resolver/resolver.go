package resolver

import (
	"github.com/google/uuid"

	"github.com/vitalsync/vitalsync-backend/internal/types"
)

// Action is the write decision for one incoming observation.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Reasons attached to decisions. Callers log every outcome, SKIP included,
// so the audit trail explains why each slot looks the way it does.
const (
	ReasonNoExistingObservation = "no_existing_observation"
	ReasonSameSourceRefresh     = "same_source_refresh"
	ReasonHigherPrioritySource  = "higher_priority_source"
	ReasonEqualPrioritySource   = "equal_priority_source"
	ReasonLowerPrioritySource   = "lower_priority_source"
)

// Decision is the structured result of resolving one incoming observation
// against the rows already present at its slot.
type Decision struct {
	Action     Action
	Reason     string
	Priority   int
	ExistingID uuid.UUID // set for UPDATE only
}

// Resolve decides insert/update/skip for an observation from source with the
// given priority, against the existing rows at one (user, date, metric) slot.
//
// Existing rows are never deleted: a higher- or equal-priority source is
// inserted alongside the rows already there, preserving cross-device history;
// a lower-priority source is skipped without mutating anything. A source that
// already has a row at the slot always updates its own row, so re-delivery is
// idempotent and never duplicates.
func Resolve(existing []types.MetricObservation, source string, sourcePriority int) Decision {
	if len(existing) == 0 {
		return Decision{Action: ActionInsert, Reason: ReasonNoExistingObservation, Priority: sourcePriority}
	}

	maxExisting := existing[0].SourcePriority
	for _, row := range existing {
		if row.Source == source {
			return Decision{
				Action:     ActionUpdate,
				Reason:     ReasonSameSourceRefresh,
				Priority:   sourcePriority,
				ExistingID: row.ID,
			}
		}
		if row.SourcePriority > maxExisting {
			maxExisting = row.SourcePriority
		}
	}

	switch {
	case sourcePriority > maxExisting:
		return Decision{Action: ActionInsert, Reason: ReasonHigherPrioritySource, Priority: sourcePriority}
	case sourcePriority == maxExisting:
		return Decision{Action: ActionInsert, Reason: ReasonEqualPrioritySource, Priority: sourcePriority}
	default:
		return Decision{Action: ActionSkip, Reason: ReasonLowerPrioritySource, Priority: sourcePriority}
	}
}
