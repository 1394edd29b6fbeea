package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	"github.com/vitalsync/vitalsync-backend/internal/merger"
	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/repos"
	"github.com/vitalsync/vitalsync-backend/internal/resolver"
	"github.com/vitalsync/vitalsync-backend/internal/types"
	"github.com/vitalsync/vitalsync-backend/internal/webhook/normalize"
)

// IngestStatus reports what became of a delivery as a whole.
type IngestStatus string

const (
	IngestStatusProcessed   IngestStatus = "processed"
	IngestStatusUnknownUser IngestStatus = "unknown_user"
)

// ObservationOutcome is the per-metric line item of a delivery receipt.
// Skipped observations appear here too; a delivered metric never vanishes
// without a recorded reason.
type ObservationOutcome struct {
	Date       string           `json:"date"`
	MetricType types.MetricType `json:"metric_type"`
	Source     string           `json:"source"`
	Action     resolver.Action  `json:"action"`
	Reason     string           `json:"reason"`
	Priority   int              `json:"priority"`
	ExistingID *uuid.UUID       `json:"existing_id,omitempty"`
}

type SummaryOutcome struct {
	Date    string `json:"date"`
	Source  string `json:"source"`
	Created bool   `json:"created"`
}

// IngestReceipt is returned to the webhook caller after a delivery has been
// fully applied.
type IngestReceipt struct {
	DeliveryID   uuid.UUID            `json:"delivery_id"`
	Provider     string               `json:"provider"`
	Status       IngestStatus         `json:"status"`
	UserID       *uuid.UUID           `json:"user_id,omitempty"`
	Observations []ObservationOutcome `json:"observations"`
	Summaries    []SummaryOutcome     `json:"summaries"`
}

// IngestService runs the full webhook pipeline for one delivery: normalize,
// resolve the local user, audit the raw payload, then apply observations
// through the priority resolver and summary deltas through the field merger.
type IngestService interface {
	HandleDelivery(ctx context.Context, provider string, body []byte) (*IngestReceipt, error)
}

type ingestService struct {
	db          *gorm.DB
	log         *logger.Logger
	table       *priority.Table
	identity    IdentityService
	locker      MergeLocker
	rawEvents   repos.RawEventRepo
	obsRepo     repos.MetricObservationRepo
	summaryRepo repos.DailySummaryRepo
}

func NewIngestService(
	db *gorm.DB,
	log *logger.Logger,
	table *priority.Table,
	identity IdentityService,
	locker MergeLocker,
	rawEvents repos.RawEventRepo,
	obsRepo repos.MetricObservationRepo,
	summaryRepo repos.DailySummaryRepo,
) IngestService {
	return &ingestService{
		db:          db,
		log:         log.With("service", "IngestService"),
		table:       table,
		identity:    identity,
		locker:      locker,
		rawEvents:   rawEvents,
		obsRepo:     obsRepo,
		summaryRepo: summaryRepo,
	}
}

// inTx mirrors the repos' nil fallback: without a configured db the work
// runs non-transactionally against whatever the repos are backed by.
func (ig *ingestService) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if ig.db == nil {
		return fn(nil)
	}
	return ig.db.WithContext(ctx).Transaction(fn)
}

func (ig *ingestService) HandleDelivery(ctx context.Context, provider string, body []byte) (*IngestReceipt, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	deliveryID := uuid.New()
	receivedAt := time.Now().UTC()
	log := ig.log.With("delivery_id", deliveryID, "provider", provider)

	result, nErr := normalize.Normalize(provider, body, ig.table)
	if nErr != nil {
		log.Warn("normalization failed", "error", nErr)
		return nil, nErr
	}

	receipt := &IngestReceipt{
		DeliveryID:   deliveryID,
		Provider:     provider,
		Status:       IngestStatusProcessed,
		Observations: []ObservationOutcome{},
		Summaries:    []SummaryOutcome{},
	}

	userID, idErr := ig.identity.Resolve(ctx, provider, result.ExternalUserID)
	knownUser := idErr == nil
	if idErr != nil && !errors.Is(idErr, apperrors.ErrUnknownUser) {
		return nil, idErr
	}

	// The audit row is written even for unknown users so the delivery can be
	// replayed once a link exists.
	rawRow := &types.RawEvent{
		ID:             uuid.New(),
		DeliveryID:     deliveryID,
		Provider:       provider,
		ExternalUserID: result.ExternalUserID,
		Payload:        datatypes.JSON(body),
		ReceivedAt:     receivedAt,
	}
	if knownUser {
		rawRow.UserID = &userID
	}
	if aErr := ig.rawEvents.Append(ctx, nil, rawRow); aErr != nil {
		return nil, fmt.Errorf("failed to append raw event: %w", aErr)
	}

	if !knownUser {
		log.Warn("delivery for unlinked external user, dropping",
			"external_user_id", result.ExternalUserID)
		receipt.Status = IngestStatusUnknownUser
		return receipt, nil
	}
	receipt.UserID = &userID
	log = log.With("user_id", userID)

	for _, cand := range result.Observations {
		outcome, oErr := ig.applyObservation(ctx, log, userID, receivedAt, cand)
		if oErr != nil {
			return nil, oErr
		}
		receipt.Observations = append(receipt.Observations, outcome)
	}

	for _, delta := range result.Summaries {
		outcome, sErr := ig.applySummaryDelta(ctx, log, userID, delta)
		if sErr != nil {
			return nil, sErr
		}
		receipt.Summaries = append(receipt.Summaries, outcome)
	}

	log.Info("delivery processed",
		"external_user_id", result.ExternalUserID,
		"observations", len(receipt.Observations),
		"summaries", len(receipt.Summaries))
	return receipt, nil
}

// applyObservation resolves one candidate against its slot and persists the
// decision. Insert and update both land in UpsertBySource: the unique
// (user, date, metric, source) index makes same-source writes collapse onto
// one row, so a concurrent duplicate delivery cannot double-insert.
func (ig *ingestService) applyObservation(ctx context.Context, log *logger.Logger, userID uuid.UUID, receivedAt time.Time, cand normalize.Candidate) (ObservationOutcome, error) {
	recordedAt := cand.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = receivedAt
	}

	var decision resolver.Decision
	err := ig.inTx(ctx, func(tx *gorm.DB) error {
		existing, lErr := ig.obsRepo.ListSlot(ctx, tx, userID, cand.Date, cand.MetricType)
		if lErr != nil {
			return fmt.Errorf("failed to list observation slot: %w", lErr)
		}
		decision = resolver.Resolve(existing, cand.Source, cand.SourcePriority)
		if decision.Action == resolver.ActionSkip {
			return nil
		}
		row := &types.MetricObservation{
			ID:             uuid.New(),
			UserID:         userID,
			Date:           cand.Date,
			MetricType:     cand.MetricType,
			Value:          cand.Value,
			Source:         cand.Source,
			SourcePriority: cand.SourcePriority,
			RecordedAt:     recordedAt,
		}
		if uErr := ig.obsRepo.UpsertBySource(ctx, tx, row); uErr != nil {
			return fmt.Errorf("failed to upsert observation: %w", uErr)
		}
		return nil
	})
	if err != nil {
		return ObservationOutcome{}, err
	}

	log.Info("observation resolved",
		"date", cand.Date,
		"metric_type", cand.MetricType,
		"source", cand.Source,
		"action", decision.Action,
		"reason", decision.Reason,
		"priority", decision.Priority)

	outcome := ObservationOutcome{
		Date:       cand.Date,
		MetricType: cand.MetricType,
		Source:     cand.Source,
		Action:     decision.Action,
		Reason:     decision.Reason,
		Priority:   decision.Priority,
	}
	if decision.ExistingID != uuid.Nil {
		id := decision.ExistingID
		outcome.ExistingID = &id
	}
	return outcome, nil
}

// applySummaryDelta merges one daily aggregate under the per-slot lock, so
// two concurrent deliveries for the same (user, date) cannot interleave their
// read-merge-write cycles and drop each other's fields.
func (ig *ingestService) applySummaryDelta(ctx context.Context, log *logger.Logger, userID uuid.UUID, delta normalize.SummaryDelta) (SummaryOutcome, error) {
	lockKey := userID.String() + ":" + delta.Date
	release, lErr := ig.locker.Acquire(ctx, lockKey)
	if lErr != nil {
		return SummaryOutcome{}, fmt.Errorf("failed to acquire merge lock: %w", lErr)
	}
	defer release()

	var created bool
	err := ig.inTx(ctx, func(tx *gorm.DB) error {
		existing, gErr := ig.summaryRepo.Get(ctx, tx, userID, delta.Date)
		if gErr != nil {
			return fmt.Errorf("failed to load daily summary: %w", gErr)
		}
		created = existing == nil
		merged := merger.Merge(existing, userID, delta)
		if uErr := ig.summaryRepo.Upsert(ctx, tx, merged); uErr != nil {
			return fmt.Errorf("failed to upsert daily summary: %w", uErr)
		}
		return nil
	})
	if err != nil {
		return SummaryOutcome{}, err
	}

	log.Info("daily summary merged",
		"date", delta.Date,
		"source", delta.Source,
		"created", created)
	return SummaryOutcome{Date: delta.Date, Source: delta.Source, Created: created}, nil
}
