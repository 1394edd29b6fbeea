package normalize

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

type ouraEnvelope struct {
	DataType string          `json:"data_type"`
	UserID   json.RawMessage `json:"user_id"`
	Data     json.RawMessage `json:"data"`
}

func parseOuraEnvelope(provider string, raw []byte) (Envelope, error) {
	var env ouraEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, malformedf("oura: undecodable body: %v", err)
	}
	return Envelope{
		Provider:       provider,
		PayloadType:    env.DataType,
		ExternalUserID: flexID(env.UserID),
		Raw:            env.Data,
	}, nil
}

type ouraSleep struct {
	Day                string           `json:"day"`
	TotalSleepDuration *decimal.Decimal `json:"total_sleep_duration"`
	Score              *decimal.Decimal `json:"score"`
	AverageHRV         *decimal.Decimal `json:"average_hrv"`
	LowestHeartRate    *decimal.Decimal `json:"lowest_heart_rate"`
	AverageBreath      *decimal.Decimal `json:"average_breath"`
	BedtimeEnd         string           `json:"bedtime_end"`
}

func normalizeOuraSleep(env Envelope, tbl *priority.Table) (*Result, error) {
	var sl ouraSleep
	if err := json.Unmarshal(env.Raw, &sl); err != nil {
		return nil, malformedf("oura sleep: undecodable data: %v", err)
	}
	if sl.Day == "" {
		return nil, malformedf("oura sleep: missing day")
	}

	pri := tbl.Lookup(env.Provider)
	at := parseTimestamp(sl.BedtimeEnd)
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
	if sl.TotalSleepDuration != nil {
		// Oura reports sleep duration in seconds.
		add(types.MetricSleepDuration, secondsToMinutes(*sl.TotalSleepDuration))
	}
	if sl.Score != nil {
		add(types.MetricSleepScore, *sl.Score)
	}
	if sl.AverageHRV != nil {
		add(types.MetricHRV, *sl.AverageHRV)
	}
	if sl.LowestHeartRate != nil {
		add(types.MetricRestingHR, *sl.LowestHeartRate)
	}
	if sl.AverageBreath != nil {
		add(types.MetricRespiratoryRate, *sl.AverageBreath)
	}

	return res, nil
}

type ouraReadiness struct {
	Day                  string           `json:"day"`
	Score                *decimal.Decimal `json:"score"`
	TemperatureDeviation *decimal.Decimal `json:"temperature_deviation"`
	Timestamp            string           `json:"timestamp"`
}

func normalizeOuraReadiness(env Envelope, tbl *priority.Table) (*Result, error) {
	var rd ouraReadiness
	if err := json.Unmarshal(env.Raw, &rd); err != nil {
		return nil, malformedf("oura readiness: undecodable data: %v", err)
	}
	if rd.Day == "" {
		return nil, malformedf("oura readiness: missing day")
	}

	pri := tbl.Lookup(env.Provider)
	at := parseTimestamp(rd.Timestamp)
	res := &Result{ExternalUserID: env.ExternalUserID}

	if rd.Score != nil {
		res.Observations = append(res.Observations, Candidate{
			Date:           rd.Day,
			MetricType:     types.MetricRecoveryScore,
			Value:          *rd.Score,
			Source:         env.Provider,
			SourcePriority: pri,
			RecordedAt:     at,
		})
	}
	if rd.TemperatureDeviation != nil {
		res.Observations = append(res.Observations, Candidate{
			Date:           rd.Day,
			MetricType:     types.MetricSkinTemp,
			Value:          *rd.TemperatureDeviation,
			Source:         env.Provider,
			SourcePriority: pri,
			RecordedAt:     at,
		})
	}

	return res, nil
}

type ouraActivity struct {
	Day                       string           `json:"day"`
	Steps                     *int64           `json:"steps"`
	ActiveCalories            *decimal.Decimal `json:"active_calories"`
	TotalCalories             *decimal.Decimal `json:"total_calories"`
	EquivalentWalkingDistance *decimal.Decimal `json:"equivalent_walking_distance"`
	HighActivityTime          *int64           `json:"high_activity_time"`
	MediumActivityTime        *int64           `json:"medium_activity_time"`
	Timestamp                 string           `json:"timestamp"`
}

// normalizeOuraActivity produces a daily-summary contribution. Steps and
// calories are aggregate counters and default to zero when absent; the
// remaining fields are omitted so the merger leaves them untouched.
func normalizeOuraActivity(env Envelope, tbl *priority.Table) (*Result, error) {
	var act ouraActivity
	if err := json.Unmarshal(env.Raw, &act); err != nil {
		return nil, malformedf("oura activity: undecodable data: %v", err)
	}
	if act.Day == "" {
		return nil, malformedf("oura activity: missing day")
	}

	steps := int64(0)
	if act.Steps != nil {
		steps = *act.Steps
	}
	delta := SummaryDelta{
		Date:           act.Day,
		Source:         env.Provider,
		SourcePriority: tbl.Lookup(env.Provider),
		Steps:          &steps,
		CaloriesTotal:  orZero(act.TotalCalories),
		CaloriesActive: orZero(act.ActiveCalories),
		DistanceMeters: act.EquivalentWalkingDistance,
	}
	if act.HighActivityTime != nil || act.MediumActivityTime != nil {
		var activeSeconds int64
		if act.HighActivityTime != nil {
			activeSeconds += *act.HighActivityTime
		}
		if act.MediumActivityTime != nil {
			activeSeconds += *act.MediumActivityTime
		}
		delta.ActiveMinutes = int64Ptr(wholeMinutesFromSeconds(activeSeconds))
	}

	return &Result{
		ExternalUserID: env.ExternalUserID,
		Summaries:      []SummaryDelta{delta},
	}, nil
}
