package normalize

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

// Terra is itself an aggregator: its deliveries wrap events that originated
// on another platform. The canonical source stays "terra" (it is the device
// we trust at terra's priority); the originating platform is preserved in
// summary metadata for audit.
type terraEnvelope struct {
	Type string `json:"type"`
	User struct {
		UserID   string `json:"user_id"`
		Provider string `json:"provider"`
	} `json:"user"`
	Data []json.RawMessage `json:"data"`
}

func parseTerraEnvelope(provider string, raw []byte) (Envelope, error) {
	var env terraEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, malformedf("terra: undecodable body: %v", err)
	}
	inner, err := json.Marshal(struct {
		Origin string            `json:"origin"`
		Data   []json.RawMessage `json:"data"`
	}{Origin: env.User.Provider, Data: env.Data})
	if err != nil {
		return Envelope{}, malformedf("terra: re-encode data: %v", err)
	}
	return Envelope{
		Provider:       provider,
		PayloadType:    env.Type,
		ExternalUserID: env.User.UserID,
		Raw:            inner,
	}, nil
}

type terraBodyItem struct {
	Date              string           `json:"date"`
	WeightKg          *decimal.Decimal `json:"weight_kg"`
	BodyFatPercentage *decimal.Decimal `json:"body_fat_percentage"`
	BMI               *decimal.Decimal `json:"bmi"`
	OxygenSaturation  *decimal.Decimal `json:"oxygen_saturation"`
	MeasurementTime   string           `json:"measurement_time"`
}

func normalizeTerraBody(env Envelope, tbl *priority.Table) (*Result, error) {
	var wrapper struct {
		Data []terraBodyItem `json:"data"`
	}
	if err := json.Unmarshal(env.Raw, &wrapper); err != nil {
		return nil, malformedf("terra body: undecodable data: %v", err)
	}

	pri := tbl.Lookup(env.Provider)
	res := &Result{ExternalUserID: env.ExternalUserID}

	for _, item := range wrapper.Data {
		if item.Date == "" {
			return nil, malformedf("terra body: missing date")
		}
		at := parseTimestamp(item.MeasurementTime)
		add := func(metric types.MetricType, v *decimal.Decimal) {
			if v == nil {
				return
			}
			res.Observations = append(res.Observations, Candidate{
				Date:           item.Date,
				MetricType:     metric,
				Value:          *v,
				Source:         env.Provider,
				SourcePriority: pri,
				RecordedAt:     at,
			})
		}
		add(types.MetricWeight, item.WeightKg)
		add(types.MetricBodyFatPercentage, item.BodyFatPercentage)
		add(types.MetricBMI, item.BMI)
		add(types.MetricSpO2, item.OxygenSaturation)
	}

	return res, nil
}

type terraDailyItem struct {
	Date                  string           `json:"date"`
	Steps                 *int64           `json:"steps"`
	CaloriesTotal         *decimal.Decimal `json:"calories_total"`
	CaloriesActive        *decimal.Decimal `json:"calories_active"`
	ActiveDurationSeconds *int64           `json:"active_duration_seconds"`
	DistanceMeters        *decimal.Decimal `json:"distance_meters"`
}

func normalizeTerraDaily(env Envelope, tbl *priority.Table) (*Result, error) {
	var wrapper struct {
		Origin string           `json:"origin"`
		Data   []terraDailyItem `json:"data"`
	}
	if err := json.Unmarshal(env.Raw, &wrapper); err != nil {
		return nil, malformedf("terra daily: undecodable data: %v", err)
	}

	pri := tbl.Lookup(env.Provider)
	res := &Result{ExternalUserID: env.ExternalUserID}

	for _, item := range wrapper.Data {
		if item.Date == "" {
			return nil, malformedf("terra daily: missing date")
		}
		steps := int64(0)
		if item.Steps != nil {
			steps = *item.Steps
		}
		delta := SummaryDelta{
			Date:           item.Date,
			Source:         env.Provider,
			SourcePriority: pri,
			Steps:          &steps,
			CaloriesTotal:  orZero(item.CaloriesTotal),
			CaloriesActive: orZero(item.CaloriesActive),
			DistanceMeters: item.DistanceMeters,
		}
		if item.ActiveDurationSeconds != nil {
			delta.ActiveMinutes = int64Ptr(wholeMinutesFromSeconds(*item.ActiveDurationSeconds))
		}
		if wrapper.Origin != "" {
			delta.Metadata = map[string]interface{}{"origin_provider": wrapper.Origin}
		}
		res.Summaries = append(res.Summaries, delta)
	}

	return res, nil
}

type terraSleepItem struct {
	Date                       string           `json:"date"`
	DurationAsleepStateSeconds *decimal.Decimal `json:"duration_asleep_state_seconds"`
	SleepEfficiency            *decimal.Decimal `json:"sleep_efficiency"`
	AvgHRVRmssd                *decimal.Decimal `json:"avg_hrv_rmssd"`
	AvgRestingHR               *decimal.Decimal `json:"avg_resting_hr"`
	EndTime                    string           `json:"end_time"`
}

func normalizeTerraSleep(env Envelope, tbl *priority.Table) (*Result, error) {
	var wrapper struct {
		Data []terraSleepItem `json:"data"`
	}
	if err := json.Unmarshal(env.Raw, &wrapper); err != nil {
		return nil, malformedf("terra sleep: undecodable data: %v", err)
	}

	pri := tbl.Lookup(env.Provider)
	res := &Result{ExternalUserID: env.ExternalUserID}

	for _, item := range wrapper.Data {
		if item.Date == "" {
			return nil, malformedf("terra sleep: missing date")
		}
		at := parseTimestamp(item.EndTime)
		add := func(metric types.MetricType, v decimal.Decimal) {
			res.Observations = append(res.Observations, Candidate{
				Date:           item.Date,
				MetricType:     metric,
				Value:          v,
				Source:         env.Provider,
				SourcePriority: pri,
				RecordedAt:     at,
			})
		}
		if item.DurationAsleepStateSeconds != nil {
			add(types.MetricSleepDuration, secondsToMinutes(*item.DurationAsleepStateSeconds))
		}
		if item.SleepEfficiency != nil {
			add(types.MetricSleepScore, *item.SleepEfficiency)
		}
		if item.AvgHRVRmssd != nil {
			add(types.MetricHRV, *item.AvgHRVRmssd)
		}
		if item.AvgRestingHR != nil {
			add(types.MetricRestingHR, *item.AvgRestingHR)
		}
	}

	return res, nil
}
