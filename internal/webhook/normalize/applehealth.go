package normalize

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

type appleHealthEnvelope struct {
	Type     string          `json:"type"`
	UserUUID json.RawMessage `json:"user_uuid"`
	Date     string          `json:"date"`
	Metrics  json.RawMessage `json:"metrics"`
}

func parseAppleHealthEnvelope(provider string, raw []byte) (Envelope, error) {
	var env appleHealthEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, malformedf("apple_health: undecodable body: %v", err)
	}
	inner, err := json.Marshal(struct {
		Date    string          `json:"date"`
		Metrics json.RawMessage `json:"metrics"`
	}{Date: env.Date, Metrics: env.Metrics})
	if err != nil {
		return Envelope{}, malformedf("apple_health: re-encode metrics: %v", err)
	}
	return Envelope{
		Provider:       provider,
		PayloadType:    env.Type,
		ExternalUserID: flexID(env.UserUUID),
		Raw:            inner,
	}, nil
}

type appleHealthSummary struct {
	Date    string `json:"date"`
	Metrics struct {
		Steps           *int64           `json:"steps"`
		ActiveEnergyKc  *decimal.Decimal `json:"active_energy_kcal"`
		TotalEnergyKc   *decimal.Decimal `json:"total_energy_kcal"`
		ExerciseMinutes *int64           `json:"exercise_minutes"`
		DistanceMeters  *decimal.Decimal `json:"distance_meters"`
	} `json:"metrics"`
}

func normalizeAppleHealthSummary(env Envelope, tbl *priority.Table) (*Result, error) {
	var sum appleHealthSummary
	if err := json.Unmarshal(env.Raw, &sum); err != nil {
		return nil, malformedf("apple_health daily_summary: undecodable metrics: %v", err)
	}
	if sum.Date == "" {
		return nil, malformedf("apple_health daily_summary: missing date")
	}

	steps := int64(0)
	if sum.Metrics.Steps != nil {
		steps = *sum.Metrics.Steps
	}
	delta := SummaryDelta{
		Date:           sum.Date,
		Source:         env.Provider,
		SourcePriority: tbl.Lookup(env.Provider),
		Steps:          &steps,
		CaloriesTotal:  orZero(sum.Metrics.TotalEnergyKc),
		CaloriesActive: orZero(sum.Metrics.ActiveEnergyKc),
		ActiveMinutes:  sum.Metrics.ExerciseMinutes,
		DistanceMeters: sum.Metrics.DistanceMeters,
	}

	return &Result{
		ExternalUserID: env.ExternalUserID,
		Summaries:      []SummaryDelta{delta},
	}, nil
}

type appleHealthBody struct {
	Date    string `json:"date"`
	Metrics struct {
		BodyMassKg        *decimal.Decimal `json:"body_mass_kg"`
		BodyFatPercentage *decimal.Decimal `json:"body_fat_percentage"`
		BMI               *decimal.Decimal `json:"bmi"`
		RestingHeartRate  *decimal.Decimal `json:"resting_heart_rate"`
		HRVSdnnMs         *decimal.Decimal `json:"hrv_sdnn_ms"`
		RecordedAt        string           `json:"recorded_at"`
	} `json:"metrics"`
}

func normalizeAppleHealthBody(env Envelope, tbl *priority.Table) (*Result, error) {
	var body appleHealthBody
	if err := json.Unmarshal(env.Raw, &body); err != nil {
		return nil, malformedf("apple_health body_metrics: undecodable metrics: %v", err)
	}
	if body.Date == "" {
		return nil, malformedf("apple_health body_metrics: missing date")
	}

	pri := tbl.Lookup(env.Provider)
	at := parseTimestamp(body.Metrics.RecordedAt)
	res := &Result{ExternalUserID: env.ExternalUserID}

	add := func(metric types.MetricType, v *decimal.Decimal) {
		if v == nil {
			return
		}
		res.Observations = append(res.Observations, Candidate{
			Date:           body.Date,
			MetricType:     metric,
			Value:          *v,
			Source:         env.Provider,
			SourcePriority: pri,
			RecordedAt:     at,
		})
	}
	add(types.MetricWeight, body.Metrics.BodyMassKg)
	add(types.MetricBodyFatPercentage, body.Metrics.BodyFatPercentage)
	add(types.MetricBMI, body.Metrics.BMI)
	add(types.MetricRestingHR, body.Metrics.RestingHeartRate)
	add(types.MetricHRV, body.Metrics.HRVSdnnMs)

	return res, nil
}
