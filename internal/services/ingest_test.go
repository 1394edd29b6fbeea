package services

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vitalsync/vitalsync-backend/internal/logger"
	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/resolver"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

func newTestLogger() *logger.Logger {
	return &logger.Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

type slotKey struct {
	user   uuid.UUID
	date   string
	metric types.MetricType
}

type fakeObsRepo struct {
	rows map[slotKey][]types.MetricObservation
}

func newFakeObsRepo() *fakeObsRepo {
	return &fakeObsRepo{rows: make(map[slotKey][]types.MetricObservation)}
}

func (f *fakeObsRepo) ListSlot(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string, metric types.MetricType) ([]types.MetricObservation, error) {
	out := make([]types.MetricObservation, len(f.rows[slotKey{userID, date, metric}]))
	copy(out, f.rows[slotKey{userID, date, metric}])
	return out, nil
}

func (f *fakeObsRepo) UpsertBySource(ctx context.Context, tx *gorm.DB, row *types.MetricObservation) error {
	k := slotKey{row.UserID, row.Date, row.MetricType}
	for i, existing := range f.rows[k] {
		if existing.Source == row.Source {
			row.ID = existing.ID
			f.rows[k][i] = *row
			return nil
		}
	}
	f.rows[k] = append(f.rows[k], *row)
	return nil
}

func (f *fakeObsRepo) BestAtSlot(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string, metric types.MetricType) (*types.MetricObservation, error) {
	rows := f.rows[slotKey{userID, date, metric}]
	if len(rows) == 0 {
		return nil, nil
	}
	sorted := make([]types.MetricObservation, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SourcePriority != sorted[j].SourcePriority {
			return sorted[i].SourcePriority > sorted[j].SourcePriority
		}
		return sorted[i].RecordedAt.After(sorted[j].RecordedAt)
	})
	best := sorted[0]
	return &best, nil
}

func (f *fakeObsRepo) ListByUserDate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string) ([]types.MetricObservation, error) {
	var out []types.MetricObservation
	for k, rows := range f.rows {
		if k.user == userID && k.date == date {
			out = append(out, rows...)
		}
	}
	return out, nil
}

type fakeSummaryRepo struct {
	rows map[string]*types.DailySummary
}

func newFakeSummaryRepo() *fakeSummaryRepo {
	return &fakeSummaryRepo{rows: make(map[string]*types.DailySummary)}
}

func summaryKey(userID uuid.UUID, date string) string {
	return userID.String() + ":" + date
}

func (f *fakeSummaryRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, date string) (*types.DailySummary, error) {
	return f.rows[summaryKey(userID, date)], nil
}

func (f *fakeSummaryRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.DailySummary) error {
	f.rows[summaryKey(row.UserID, row.Date)] = row
	return nil
}

type fakeRawEventRepo struct {
	rows []types.RawEvent
}

func (f *fakeRawEventRepo) Append(ctx context.Context, tx *gorm.DB, row *types.RawEvent) error {
	f.rows = append(f.rows, *row)
	return nil
}

func (f *fakeRawEventRepo) ListByDelivery(ctx context.Context, tx *gorm.DB, deliveryID uuid.UUID) ([]types.RawEvent, error) {
	var out []types.RawEvent
	for _, r := range f.rows {
		if r.DeliveryID == deliveryID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeDeviceLinkRepo struct {
	links map[string]*types.DeviceLink
}

func newFakeDeviceLinkRepo() *fakeDeviceLinkRepo {
	return &fakeDeviceLinkRepo{links: make(map[string]*types.DeviceLink)}
}

func linkKey(provider, externalUserID string) string {
	return provider + "|" + externalUserID
}

func (f *fakeDeviceLinkRepo) GetByExternal(ctx context.Context, tx *gorm.DB, provider, externalUserID string) (*types.DeviceLink, error) {
	return f.links[linkKey(provider, externalUserID)], nil
}

func (f *fakeDeviceLinkRepo) Upsert(ctx context.Context, tx *gorm.DB, link *types.DeviceLink) error {
	f.links[linkKey(link.Provider, link.ExternalUserID)] = link
	return nil
}

func (f *fakeDeviceLinkRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]types.DeviceLink, error) {
	var out []types.DeviceLink
	for _, l := range f.links {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*types.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.User, error) {
	return f.users[userID], nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
	u, _ := f.GetByEmail(ctx, tx, email)
	return u != nil, nil
}

type ingestFixture struct {
	svc       IngestService
	userID    uuid.UUID
	obsRepo   *fakeObsRepo
	summaries *fakeSummaryRepo
	rawEvents *fakeRawEventRepo
	links     *fakeDeviceLinkRepo
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	log := newTestLogger()
	userID := uuid.New()

	users := newFakeUserRepo()
	users.users[userID] = &types.User{ID: userID, Email: "athlete@example.com"}

	links := newFakeDeviceLinkRepo()
	for provider, ext := range map[string]string{
		"whoop":  "w-1",
		"oura":   "o-1",
		"garmin": "g-1",
		"manual": "m-1",
		"zepp":   "z-1",
	} {
		links.links[linkKey(provider, ext)] = &types.DeviceLink{
			ID:             uuid.New(),
			UserID:         userID,
			Provider:       provider,
			ExternalUserID: ext,
		}
	}

	obsRepo := newFakeObsRepo()
	summaries := newFakeSummaryRepo()
	rawEvents := &fakeRawEventRepo{}
	identity := NewIdentityService(log, links, users)

	svc := NewIngestService(
		nil,
		log,
		priority.Defaults(),
		identity,
		NewLocalMergeLocker(),
		rawEvents,
		obsRepo,
		summaries,
	)
	return &ingestFixture{
		svc:       svc,
		userID:    userID,
		obsRepo:   obsRepo,
		summaries: summaries,
		rawEvents: rawEvents,
		links:     links,
	}
}

func TestHandleDeliveryWhoopRecovery(t *testing.T) {
	fx := newIngestFixture(t)
	body := []byte(`{"type":"recovery","user_id":"w-1","data":{"day":"2026-03-14","recovery_score":87,"resting_heart_rate":52,"hrv_rmssd_milli":64.5,"spo2_percentage":97.2,"skin_temp_celsius":33.8,"updated_at":"2026-03-14T07:10:00Z"}}`)

	receipt, err := fx.svc.HandleDelivery(context.Background(), "whoop", body)
	if err != nil {
		t.Fatalf("HandleDelivery: %v", err)
	}
	if receipt.Status != IngestStatusProcessed {
		t.Fatalf("status=%s, want %s", receipt.Status, IngestStatusProcessed)
	}
	if receipt.UserID == nil || *receipt.UserID != fx.userID {
		t.Fatalf("receipt user=%v, want %s", receipt.UserID, fx.userID)
	}
	if len(receipt.Observations) != 5 {
		t.Fatalf("got %d observation outcomes, want 5", len(receipt.Observations))
	}
	for _, oc := range receipt.Observations {
		if oc.Action != resolver.ActionInsert {
			t.Fatalf("%s: action=%s, want insert", oc.MetricType, oc.Action)
		}
		if oc.Reason != resolver.ReasonNoExistingObservation {
			t.Fatalf("%s: reason=%s", oc.MetricType, oc.Reason)
		}
		if oc.Priority != 100 {
			t.Fatalf("%s: priority=%d, want 100", oc.MetricType, oc.Priority)
		}
	}

	best, err := fx.obsRepo.BestAtSlot(context.Background(), nil, fx.userID, "2026-03-14", types.MetricRecoveryScore)
	if err != nil || best == nil {
		t.Fatalf("BestAtSlot: %v, %v", best, err)
	}
	if !best.Value.Equal(decimalFromString(t, "87")) {
		t.Fatalf("stored recovery_score=%s, want 87", best.Value)
	}

	if len(fx.rawEvents.rows) != 1 {
		t.Fatalf("got %d raw events, want 1", len(fx.rawEvents.rows))
	}
	raw := fx.rawEvents.rows[0]
	if raw.UserID == nil || *raw.UserID != fx.userID {
		t.Fatalf("raw event user=%v, want %s", raw.UserID, fx.userID)
	}
	if raw.DeliveryID != receipt.DeliveryID {
		t.Fatalf("raw event delivery=%s, want %s", raw.DeliveryID, receipt.DeliveryID)
	}
	if string(raw.Payload) != string(body) {
		t.Fatalf("raw event payload does not match delivered body")
	}
}

func TestHandleDeliveryUnknownUserDropped(t *testing.T) {
	fx := newIngestFixture(t)
	body := []byte(`{"type":"recovery","user_id":"stranger","data":{"day":"2026-03-14","recovery_score":55}}`)

	receipt, err := fx.svc.HandleDelivery(context.Background(), "whoop", body)
	if err != nil {
		t.Fatalf("HandleDelivery: %v", err)
	}
	if receipt.Status != IngestStatusUnknownUser {
		t.Fatalf("status=%s, want %s", receipt.Status, IngestStatusUnknownUser)
	}
	if len(receipt.Observations) != 0 {
		t.Fatalf("dropped delivery produced %d observations", len(receipt.Observations))
	}
	if len(fx.obsRepo.rows) != 0 {
		t.Fatalf("dropped delivery persisted observations")
	}
	// Audit row still lands so the payload can be replayed after linking.
	if len(fx.rawEvents.rows) != 1 {
		t.Fatalf("got %d raw events, want 1", len(fx.rawEvents.rows))
	}
	if fx.rawEvents.rows[0].UserID != nil {
		t.Fatalf("unlinked raw event carries a user id")
	}
}

func TestHandleDeliveryMalformedPersistsNothing(t *testing.T) {
	fx := newIngestFixture(t)
	body := []byte(`{"user_id":"w-1","data":{"day":"2026-03-14"}}`)

	_, err := fx.svc.HandleDelivery(context.Background(), "whoop", body)
	if !errors.Is(err, apperrors.ErrPayloadMalformed) {
		t.Fatalf("err=%v, want ErrPayloadMalformed", err)
	}
	if len(fx.rawEvents.rows) != 0 {
		t.Fatalf("malformed delivery was audited")
	}
	if len(fx.obsRepo.rows) != 0 {
		t.Fatalf("malformed delivery persisted observations")
	}
}

func TestHandleDeliveryLowerPrioritySkipped(t *testing.T) {
	fx := newIngestFixture(t)
	whoopBody := []byte(`{"type":"recovery","user_id":"w-1","data":{"day":"2026-03-14","recovery_score":87,"updated_at":"2026-03-14T07:10:00Z"}}`)
	if _, err := fx.svc.HandleDelivery(context.Background(), "whoop", whoopBody); err != nil {
		t.Fatalf("whoop delivery: %v", err)
	}

	manualBody := []byte(`{"type":"metrics","external_user_id":"m-1","date":"2026-03-14","metrics":{"recovery_score":60}}`)
	receipt, err := fx.svc.HandleDelivery(context.Background(), "manual", manualBody)
	if err != nil {
		t.Fatalf("manual delivery: %v", err)
	}
	if len(receipt.Observations) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(receipt.Observations))
	}
	oc := receipt.Observations[0]
	if oc.Action != resolver.ActionSkip {
		t.Fatalf("action=%s, want skip", oc.Action)
	}
	if oc.Reason != resolver.ReasonLowerPrioritySource {
		t.Fatalf("reason=%s, want %s", oc.Reason, resolver.ReasonLowerPrioritySource)
	}

	// The skip left the slot untouched: only whoop's row remains.
	rows, _ := fx.obsRepo.ListSlot(context.Background(), nil, fx.userID, "2026-03-14", types.MetricRecoveryScore)
	if len(rows) != 1 || rows[0].Source != "whoop" {
		t.Fatalf("slot rows=%v, want only whoop", rows)
	}
}

func TestHandleDeliverySameSourceRefreshIdempotent(t *testing.T) {
	fx := newIngestFixture(t)
	body := []byte(`{"type":"recovery","user_id":"w-1","data":{"day":"2026-03-14","recovery_score":87,"updated_at":"2026-03-14T07:10:00Z"}}`)
	if _, err := fx.svc.HandleDelivery(context.Background(), "whoop", body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	again := []byte(`{"type":"recovery","user_id":"w-1","data":{"day":"2026-03-14","recovery_score":91,"updated_at":"2026-03-14T09:00:00Z"}}`)
	receipt, err := fx.svc.HandleDelivery(context.Background(), "whoop", again)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	oc := receipt.Observations[0]
	if oc.Action != resolver.ActionUpdate {
		t.Fatalf("action=%s, want update", oc.Action)
	}
	if oc.Reason != resolver.ReasonSameSourceRefresh {
		t.Fatalf("reason=%s, want %s", oc.Reason, resolver.ReasonSameSourceRefresh)
	}
	if oc.ExistingID == nil {
		t.Fatalf("update outcome missing existing id")
	}

	rows, _ := fx.obsRepo.ListSlot(context.Background(), nil, fx.userID, "2026-03-14", types.MetricRecoveryScore)
	if len(rows) != 1 {
		t.Fatalf("re-delivery duplicated the slot: %d rows", len(rows))
	}
	if !rows[0].Value.Equal(decimalFromString(t, "91")) {
		t.Fatalf("refreshed value=%s, want 91", rows[0].Value)
	}
}

func TestHandleDeliveryHigherPriorityCoexists(t *testing.T) {
	fx := newIngestFixture(t)
	ouraBody := []byte(`{"data_type":"readiness","user_id":"o-1","data":{"day":"2026-03-14","score":72,"timestamp":"2026-03-14T06:00:00Z"}}`)
	if _, err := fx.svc.HandleDelivery(context.Background(), "oura", ouraBody); err != nil {
		t.Fatalf("oura delivery: %v", err)
	}

	whoopBody := []byte(`{"type":"recovery","user_id":"w-1","data":{"day":"2026-03-14","recovery_score":87,"updated_at":"2026-03-14T07:10:00Z"}}`)
	receipt, err := fx.svc.HandleDelivery(context.Background(), "whoop", whoopBody)
	if err != nil {
		t.Fatalf("whoop delivery: %v", err)
	}
	if receipt.Observations[0].Reason != resolver.ReasonHigherPrioritySource {
		t.Fatalf("reason=%s, want %s", receipt.Observations[0].Reason, resolver.ReasonHigherPrioritySource)
	}

	rows, _ := fx.obsRepo.ListSlot(context.Background(), nil, fx.userID, "2026-03-14", types.MetricRecoveryScore)
	if len(rows) != 2 {
		t.Fatalf("slot has %d rows, want oura and whoop side by side", len(rows))
	}
	best, _ := fx.obsRepo.BestAtSlot(context.Background(), nil, fx.userID, "2026-03-14", types.MetricRecoveryScore)
	if best.Source != "whoop" {
		t.Fatalf("best source=%s, want whoop", best.Source)
	}
}

func TestHandleDeliverySummaryMerge(t *testing.T) {
	fx := newIngestFixture(t)
	ouraBody := []byte(`{"data_type":"activity","user_id":"o-1","data":{"day":"2026-03-14","steps":9200,"active_calories":450,"total_calories":2300,"timestamp":"2026-03-14T22:00:00Z"}}`)
	receipt, err := fx.svc.HandleDelivery(context.Background(), "oura", ouraBody)
	if err != nil {
		t.Fatalf("oura delivery: %v", err)
	}
	if len(receipt.Summaries) != 1 || !receipt.Summaries[0].Created {
		t.Fatalf("first delta should create the summary: %+v", receipt.Summaries)
	}

	whoopBody := []byte(`{"type":"workout","user_id":"w-1","data":{"day":"2026-03-14","strain":14.2,"calories":510,"duration_seconds":3600,"updated_at":"2026-03-14T19:00:00Z"}}`)
	receipt, err = fx.svc.HandleDelivery(context.Background(), "whoop", whoopBody)
	if err != nil {
		t.Fatalf("whoop delivery: %v", err)
	}
	if len(receipt.Summaries) != 1 || receipt.Summaries[0].Created {
		t.Fatalf("second delta should merge, not create: %+v", receipt.Summaries)
	}

	stored, _ := fx.summaries.Get(context.Background(), nil, fx.userID, "2026-03-14")
	if stored == nil {
		t.Fatalf("summary missing after merge")
	}
	if stored.Steps == nil || *stored.Steps != 9200 {
		t.Fatalf("steps=%v, want 9200 preserved from oura", stored.Steps)
	}
	// whoop clears the override threshold, so its active calories replace
	// the value oura set.
	if stored.CaloriesActive == nil || !stored.CaloriesActive.Equal(decimalFromString(t, "510")) {
		t.Fatalf("calories_active=%v, want 510", stored.CaloriesActive)
	}
	if stored.ActiveMinutes == nil || *stored.ActiveMinutes != 60 {
		t.Fatalf("active_minutes=%v, want 60", stored.ActiveMinutes)
	}
	if !stored.HasSource("oura") || !stored.HasSource("whoop") {
		t.Fatalf("sources=%v, want both oura and whoop", stored.Sources)
	}
}

func TestHandleDeliveryGenericProviderRecordedAtFallback(t *testing.T) {
	fx := newIngestFixture(t)
	body := []byte(`{"type":"metrics","external_user_id":"z-1","date":"2026-03-14","metrics":{"vo2_max":48.5}}`)

	receipt, err := fx.svc.HandleDelivery(context.Background(), "zepp", body)
	if err != nil {
		t.Fatalf("HandleDelivery: %v", err)
	}
	if receipt.Observations[0].Priority != priority.DefaultPriority {
		t.Fatalf("priority=%d, want default %d", receipt.Observations[0].Priority, priority.DefaultPriority)
	}

	rows, _ := fx.obsRepo.ListSlot(context.Background(), nil, fx.userID, "2026-03-14", types.MetricVO2Max)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].RecordedAt.IsZero() {
		t.Fatalf("recorded_at not defaulted to receipt time")
	}
}
