package normalize

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

type whoopEnvelope struct {
	Type   string          `json:"type"`
	UserID json.RawMessage `json:"user_id"`
	Data   json.RawMessage `json:"data"`
}

func parseWhoopEnvelope(provider string, raw []byte) (Envelope, error) {
	var env whoopEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, malformedf("whoop: undecodable body: %v", err)
	}
	return Envelope{
		Provider:       provider,
		PayloadType:    env.Type,
		ExternalUserID: flexID(env.UserID),
		Raw:            env.Data,
	}, nil
}

type whoopRecovery struct {
	Day              string           `json:"day"`
	RecoveryScore    *decimal.Decimal `json:"recovery_score"`
	RestingHeartRate *decimal.Decimal `json:"resting_heart_rate"`
	HRVRmssdMilli    *decimal.Decimal `json:"hrv_rmssd_milli"`
	SpO2Percentage   *decimal.Decimal `json:"spo2_percentage"`
	SkinTempCelsius  *decimal.Decimal `json:"skin_temp_celsius"`
	UpdatedAt        string           `json:"updated_at"`
}

// normalizeWhoopRecovery fans one recovery event out into one candidate per
// measured property. Absent properties are omitted, never defaulted.
func normalizeWhoopRecovery(env Envelope, tbl *priority.Table) (*Result, error) {
	var rec whoopRecovery
	if err := json.Unmarshal(env.Raw, &rec); err != nil {
		return nil, malformedf("whoop recovery: undecodable data: %v", err)
	}
	if rec.Day == "" {
		return nil, malformedf("whoop recovery: missing day")
	}

	pri := tbl.Lookup(env.Provider)
	at := parseTimestamp(rec.UpdatedAt)
	res := &Result{ExternalUserID: env.ExternalUserID}

	add := func(metric types.MetricType, v *decimal.Decimal) {
		if v == nil {
			return
		}
		res.Observations = append(res.Observations, Candidate{
			Date:           rec.Day,
			MetricType:     metric,
			Value:          *v,
			Source:         env.Provider,
			SourcePriority: pri,
			RecordedAt:     at,
		})
	}
	add(types.MetricRecoveryScore, rec.RecoveryScore)
	add(types.MetricRestingHR, rec.RestingHeartRate)
	add(types.MetricHRV, rec.HRVRmssdMilli)
	add(types.MetricSpO2, rec.SpO2Percentage)
	add(types.MetricSkinTemp, rec.SkinTempCelsius)

	return res, nil
}

type whoopSleep struct {
	Day                         string           `json:"day"`
	DurationAsleepStateSeconds  *decimal.Decimal `json:"duration_asleep_state_seconds"`
	SleepPerformancePercentage  *decimal.Decimal `json:"sleep_performance_percentage"`
	RespiratoryRate             *decimal.Decimal `json:"respiratory_rate"`
	UpdatedAt                   string           `json:"updated_at"`
}

func normalizeWhoopSleep(env Envelope, tbl *priority.Table) (*Result, error) {
	var sl whoopSleep
	if err := json.Unmarshal(env.Raw, &sl); err != nil {
		return nil, malformedf("whoop sleep: undecodable data: %v", err)
	}
	if sl.Day == "" {
		return nil, malformedf("whoop sleep: missing day")
	}

	pri := tbl.Lookup(env.Provider)
	at := parseTimestamp(sl.UpdatedAt)
	res := &Result{ExternalUserID: env.ExternalUserID}

	add := func(metric types.MetricType, v decimal.Decimal) {
		res.Observations = append(res.Observations, Candidate{
			Date:           sl.Day,
			MetricType:     metric,
			Value:          v,
			Source:         env.Provider,
			SourcePriority: pri,
			RecordedAt:     at,
		})
	}
	if sl.DurationAsleepStateSeconds != nil {
		add(types.MetricSleepDuration, secondsToMinutes(*sl.DurationAsleepStateSeconds))
	}
	if sl.SleepPerformancePercentage != nil {
		add(types.MetricSleepScore, *sl.SleepPerformancePercentage)
	}
	if sl.RespiratoryRate != nil {
		add(types.MetricRespiratoryRate, *sl.RespiratoryRate)
	}

	return res, nil
}

type whoopWorkout struct {
	Day             string           `json:"day"`
	Strain          *decimal.Decimal `json:"strain"`
	Calories        *decimal.Decimal `json:"calories"`
	DurationSeconds *int64           `json:"duration_seconds"`
	UpdatedAt       string           `json:"updated_at"`
}

// normalizeWhoopWorkout emits the strain observation plus an aggregate
// contribution to the daily summary (active calories and minutes).
func normalizeWhoopWorkout(env Envelope, tbl *priority.Table) (*Result, error) {
	var wk whoopWorkout
	if err := json.Unmarshal(env.Raw, &wk); err != nil {
		return nil, malformedf("whoop workout: undecodable data: %v", err)
	}
	if wk.Day == "" {
		return nil, malformedf("whoop workout: missing day")
	}

	pri := tbl.Lookup(env.Provider)
	at := parseTimestamp(wk.UpdatedAt)
	res := &Result{ExternalUserID: env.ExternalUserID}

	if wk.Strain != nil {
		res.Observations = append(res.Observations, Candidate{
			Date:           wk.Day,
			MetricType:     types.MetricStrain,
			Value:          *wk.Strain,
			Source:         env.Provider,
			SourcePriority: pri,
			RecordedAt:     at,
		})
	}

	delta := SummaryDelta{
		Date:           wk.Day,
		Source:         env.Provider,
		SourcePriority: pri,
		CaloriesActive: orZero(wk.Calories),
	}
	if wk.DurationSeconds != nil {
		delta.ActiveMinutes = int64Ptr(wholeMinutesFromSeconds(*wk.DurationSeconds))
	}
	res.Summaries = append(res.Summaries, delta)

	return res, nil
}
