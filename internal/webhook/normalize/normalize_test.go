package normalize

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

func findCandidate(t *testing.T, res *Result, metric types.MetricType) Candidate {
	t.Helper()
	for _, c := range res.Observations {
		if c.MetricType == metric {
			return c
		}
	}
	t.Fatalf("no candidate for metric %s", metric)
	return Candidate{}
}

func TestWhoopRecovery_FansOutAllProperties(t *testing.T) {
	body := `{
		"type": "recovery",
		"user_id": 9012,
		"data": {
			"day": "2026-08-29",
			"recovery_score": 85,
			"resting_heart_rate": 52,
			"hrv_rmssd_milli": 68.4,
			"spo2_percentage": 97.5,
			"skin_temp_celsius": 33.1,
			"updated_at": "2026-08-29T07:12:00Z"
		}
	}`
	res, err := Normalize("whoop", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.ExternalUserID != "9012" {
		t.Fatalf("external user id = %q, want 9012", res.ExternalUserID)
	}
	if len(res.Observations) != 5 {
		t.Fatalf("got %d candidates, want 5", len(res.Observations))
	}
	for _, c := range res.Observations {
		if c.Source != "whoop" {
			t.Fatalf("candidate source = %q, want whoop", c.Source)
		}
		if c.SourcePriority != 100 {
			t.Fatalf("candidate priority = %d, want 100", c.SourcePriority)
		}
		if c.Date != "2026-08-29" {
			t.Fatalf("candidate date = %q, want 2026-08-29", c.Date)
		}
	}
	score := findCandidate(t, res, types.MetricRecoveryScore)
	if !score.Value.Equal(decimal.NewFromInt(85)) {
		t.Fatalf("recovery_score = %s, want 85", score.Value)
	}
	if score.RecordedAt.IsZero() {
		t.Fatalf("expected recorded_at from payload timestamp")
	}
}

func TestWhoopRecovery_PartialDataDoesNotFail(t *testing.T) {
	body := `{
		"type": "recovery",
		"user_id": "u-1",
		"data": {"day": "2026-08-29", "recovery_score": 61}
	}`
	res, err := Normalize("whoop", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Observations) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Observations))
	}
}

func TestWhoopSleep_DurationSecondsToMinutes(t *testing.T) {
	body := `{
		"type": "sleep",
		"user_id": "u-1",
		"data": {"day": "2026-08-29", "duration_asleep_state_seconds": 27000}
	}`
	res, err := Normalize("whoop", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	dur := findCandidate(t, res, types.MetricSleepDuration)
	if !dur.Value.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("sleep_duration = %s minutes, want 450", dur.Value)
	}
}

func TestWhoopWorkout_StrainAndSummaryContribution(t *testing.T) {
	body := `{
		"type": "workout",
		"user_id": "u-1",
		"data": {"day": "2026-08-29", "strain": 14.2, "calories": 512, "duration_seconds": 3600}
	}`
	res, err := Normalize("whoop", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	strain := findCandidate(t, res, types.MetricStrain)
	if !strain.Value.Equal(decimal.NewFromFloat(14.2)) {
		t.Fatalf("strain = %s, want 14.2", strain.Value)
	}
	if len(res.Summaries) != 1 {
		t.Fatalf("got %d summary deltas, want 1", len(res.Summaries))
	}
	delta := res.Summaries[0]
	if delta.ActiveMinutes == nil || *delta.ActiveMinutes != 60 {
		t.Fatalf("active minutes = %v, want 60", delta.ActiveMinutes)
	}
	if delta.CaloriesActive == nil || !delta.CaloriesActive.Equal(decimal.NewFromInt(512)) {
		t.Fatalf("calories active = %v, want 512", delta.CaloriesActive)
	}
}

func TestNormalize_MissingPayloadTypeIsMalformed(t *testing.T) {
	body := `{"user_id": "u-1", "data": {"day": "2026-08-29"}}`
	_, err := Normalize("whoop", []byte(body), priority.Defaults())
	if !errors.Is(err, apperrors.ErrPayloadMalformed) {
		t.Fatalf("err = %v, want ErrPayloadMalformed", err)
	}
}

func TestNormalize_MissingExternalUserIDIsMalformed(t *testing.T) {
	body := `{"type": "recovery", "data": {"day": "2026-08-29", "recovery_score": 50}}`
	_, err := Normalize("whoop", []byte(body), priority.Defaults())
	if !errors.Is(err, apperrors.ErrPayloadMalformed) {
		t.Fatalf("err = %v, want ErrPayloadMalformed", err)
	}
}

func TestNormalize_UnsupportedPayloadTypeIsMalformed(t *testing.T) {
	body := `{"type": "meditation", "user_id": "u-1", "data": {}}`
	_, err := Normalize("whoop", []byte(body), priority.Defaults())
	if !errors.Is(err, apperrors.ErrPayloadMalformed) {
		t.Fatalf("err = %v, want ErrPayloadMalformed", err)
	}
}

func TestOuraActivity_AggregateCountersDefaultZero(t *testing.T) {
	body := `{
		"data_type": "activity",
		"user_id": "oura-7",
		"data": {"day": "2026-08-29", "equivalent_walking_distance": 5200.5}
	}`
	res, err := Normalize("oura", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Summaries) != 1 {
		t.Fatalf("got %d summary deltas, want 1", len(res.Summaries))
	}
	delta := res.Summaries[0]
	if delta.Steps == nil || *delta.Steps != 0 {
		t.Fatalf("steps = %v, want explicit 0", delta.Steps)
	}
	if delta.CaloriesTotal == nil || !delta.CaloriesTotal.IsZero() {
		t.Fatalf("calories_total = %v, want explicit 0", delta.CaloriesTotal)
	}
	if delta.ActiveMinutes != nil {
		t.Fatalf("active_minutes should stay unset, got %v", *delta.ActiveMinutes)
	}
	if delta.DistanceMeters == nil || !delta.DistanceMeters.Equal(decimal.NewFromFloat(5200.5)) {
		t.Fatalf("distance = %v, want 5200.5", delta.DistanceMeters)
	}
}

func TestOuraSleep_MapsPointMetrics(t *testing.T) {
	body := `{
		"data_type": "sleep",
		"user_id": "oura-7",
		"data": {
			"day": "2026-08-29",
			"total_sleep_duration": 25200,
			"score": 88,
			"average_hrv": 55,
			"lowest_heart_rate": 47
		}
	}`
	res, err := Normalize("oura", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	dur := findCandidate(t, res, types.MetricSleepDuration)
	if !dur.Value.Equal(decimal.NewFromInt(420)) {
		t.Fatalf("sleep duration = %s, want 420 minutes", dur.Value)
	}
	hr := findCandidate(t, res, types.MetricRestingHR)
	if hr.SourcePriority != 95 {
		t.Fatalf("oura priority = %d, want 95", hr.SourcePriority)
	}
}

func TestGarminBody_GramsToKilograms(t *testing.T) {
	body := `{
		"summary_type": "body_composition",
		"user_id": "g-1",
		"summaries": [
			{"measurement_date": "2026-08-29", "weight_grams": 72500, "bmi": 23.1}
		]
	}`
	res, err := Normalize("garmin", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	weight := findCandidate(t, res, types.MetricWeight)
	if !weight.Value.Equal(decimal.NewFromFloat(72.5)) {
		t.Fatalf("weight = %s kg, want 72.5", weight.Value)
	}
	if len(res.Observations) != 2 {
		t.Fatalf("got %d candidates, want 2 (partial body data must not fail)", len(res.Observations))
	}
}

func TestGarminDaily_MultipleSummariesFanOut(t *testing.T) {
	body := `{
		"summary_type": "daily",
		"user_id": "g-1",
		"summaries": [
			{"calendar_date": "2026-08-28", "steps": 9000, "active_kilocalories": 400, "bmr_kilocalories": 1500},
			{"calendar_date": "2026-08-29", "steps": 11000, "active_time_seconds": 4800}
		]
	}`
	res, err := Normalize("garmin", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Summaries) != 2 {
		t.Fatalf("got %d summary deltas, want 2", len(res.Summaries))
	}
	first := res.Summaries[0]
	if first.CaloriesTotal == nil || !first.CaloriesTotal.Equal(decimal.NewFromInt(1900)) {
		t.Fatalf("calories_total = %v, want 1900 (active + bmr)", first.CaloriesTotal)
	}
	second := res.Summaries[1]
	if second.ActiveMinutes == nil || *second.ActiveMinutes != 80 {
		t.Fatalf("active_minutes = %v, want 80", second.ActiveMinutes)
	}
}

func TestFitbitActivities_KilometersToMeters(t *testing.T) {
	body := `{
		"collection_type": "activities",
		"owner_id": "fb-3",
		"date": "2026-08-29",
		"data": {
			"steps": 8421,
			"calories_out": 2310,
			"activity_calories": 612,
			"fairly_active_minutes": 25,
			"very_active_minutes": 30,
			"distance_km": 6.2
		}
	}`
	res, err := Normalize("fitbit", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	delta := res.Summaries[0]
	if delta.DistanceMeters == nil || !delta.DistanceMeters.Equal(decimal.NewFromInt(6200)) {
		t.Fatalf("distance = %v, want 6200 meters", delta.DistanceMeters)
	}
	if delta.ActiveMinutes == nil || *delta.ActiveMinutes != 55 {
		t.Fatalf("active minutes = %v, want 55", delta.ActiveMinutes)
	}
	if delta.SourcePriority != 50 {
		t.Fatalf("fitbit priority = %d, want 50", delta.SourcePriority)
	}
}

func TestTerraDaily_PreservesOriginProvider(t *testing.T) {
	body := `{
		"type": "daily",
		"user": {"user_id": "t-55", "provider": "FITBIT"},
		"data": [
			{"date": "2026-08-29", "steps": 7000, "calories_total": 2100}
		]
	}`
	res, err := Normalize("terra", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	delta := res.Summaries[0]
	if delta.Source != "terra" {
		t.Fatalf("source = %q, want terra", delta.Source)
	}
	if delta.SourcePriority != 55 {
		t.Fatalf("terra priority = %d, want 55", delta.SourcePriority)
	}
	if delta.Metadata["origin_provider"] != "FITBIT" {
		t.Fatalf("metadata origin = %v, want FITBIT", delta.Metadata["origin_provider"])
	}
}

func TestTerraBody_MultipleItemsFanOut(t *testing.T) {
	body := `{
		"type": "body",
		"user": {"user_id": "t-55", "provider": "GARMIN"},
		"data": [
			{"date": "2026-08-28", "weight_kg": 71.9},
			{"date": "2026-08-29", "weight_kg": 72.1, "oxygen_saturation": 98}
		]
	}`
	res, err := Normalize("terra", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Observations) != 3 {
		t.Fatalf("got %d candidates, want 3", len(res.Observations))
	}
}

func TestGenericFallback_UnknownProviderStillIngests(t *testing.T) {
	body := `{
		"type": "metrics",
		"external_user_id": "p-9",
		"date": "2026-08-29",
		"recorded_at": "2026-08-29T21:00:00+02:00",
		"metrics": {"resting_hr": 49, "vo2_max": 51.2, "mystery_metric": 1}
	}`
	res, err := Normalize("zepp", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Observations) != 2 {
		t.Fatalf("got %d candidates, want 2 (unrecognized keys skipped)", len(res.Observations))
	}
	for _, c := range res.Observations {
		if c.Source != "zepp" {
			t.Fatalf("source = %q, want zepp", c.Source)
		}
		if c.SourcePriority != priority.DefaultPriority {
			t.Fatalf("priority = %d, want default %d", c.SourcePriority, priority.DefaultPriority)
		}
	}
}

func TestGenericFallback_ManualUsesTablePriority(t *testing.T) {
	body := `{
		"type": "metrics",
		"external_user_id": "m-1",
		"date": "2026-08-29",
		"metrics": {"weight": 72.5}
	}`
	res, err := Normalize("manual", []byte(body), priority.Defaults())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	weight := findCandidate(t, res, types.MetricWeight)
	if weight.SourcePriority != 40 {
		t.Fatalf("manual priority = %d, want 40", weight.SourcePriority)
	}
	if !weight.RecordedAt.IsZero() {
		t.Fatalf("recorded_at should be zero when payload has no timestamp")
	}
}

func TestNormalize_MissingSlotDateIsMalformed(t *testing.T) {
	body := `{"type": "sleep", "user_id": "u-1", "data": {"duration_asleep_state_seconds": 100}}`
	_, err := Normalize("whoop", []byte(body), priority.Defaults())
	if !errors.Is(err, apperrors.ErrPayloadMalformed) {
		t.Fatalf("err = %v, want ErrPayloadMalformed", err)
	}
}

func TestParseTimestamp_PassesThroughOffset(t *testing.T) {
	at := parseTimestamp("2026-08-29T21:00:00+02:00")
	if at.IsZero() {
		t.Fatalf("expected parse to succeed")
	}
	_, offset := at.Zone()
	if offset != 2*60*60 {
		t.Fatalf("offset = %d, want +02:00 preserved without conversion", offset)
	}
}
