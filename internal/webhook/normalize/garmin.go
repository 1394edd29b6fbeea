package normalize

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

// Garmin pushes carry an array of summaries per delivery, so one delivery
// can normalize into records for several days.
type garminEnvelope struct {
	SummaryType string            `json:"summary_type"`
	UserID      json.RawMessage   `json:"user_id"`
	Summaries   []json.RawMessage `json:"summaries"`
}

func parseGarminEnvelope(provider string, raw []byte) (Envelope, error) {
	var env garminEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, malformedf("garmin: undecodable body: %v", err)
	}
	// Re-encode just the summaries for the payload-type normalizer.
	inner, err := json.Marshal(env.Summaries)
	if err != nil {
		return Envelope{}, malformedf("garmin: re-encode summaries: %v", err)
	}
	return Envelope{
		Provider:       provider,
		PayloadType:    env.SummaryType,
		ExternalUserID: flexID(env.UserID),
		Raw:            inner,
	}, nil
}

type garminDaily struct {
	CalendarDate       string           `json:"calendar_date"`
	Steps              *int64           `json:"steps"`
	ActiveTimeSeconds  *int64           `json:"active_time_seconds"`
	ActiveKilocalories *decimal.Decimal `json:"active_kilocalories"`
	BMRKilocalories    *decimal.Decimal `json:"bmr_kilocalories"`
	DistanceMeters     *decimal.Decimal `json:"distance_meters"`
}

func normalizeGarminDaily(env Envelope, tbl *priority.Table) (*Result, error) {
	var dailies []garminDaily
	if err := json.Unmarshal(env.Raw, &dailies); err != nil {
		return nil, malformedf("garmin daily: undecodable summaries: %v", err)
	}

	pri := tbl.Lookup(env.Provider)
	res := &Result{ExternalUserID: env.ExternalUserID}

	for _, d := range dailies {
		if d.CalendarDate == "" {
			return nil, malformedf("garmin daily: missing calendar_date")
		}
		steps := int64(0)
		if d.Steps != nil {
			steps = *d.Steps
		}
		active := orZero(d.ActiveKilocalories)
		total := *active
		if d.BMRKilocalories != nil {
			total = total.Add(*d.BMRKilocalories)
		}
		delta := SummaryDelta{
			Date:           d.CalendarDate,
			Source:         env.Provider,
			SourcePriority: pri,
			Steps:          &steps,
			CaloriesActive: active,
			CaloriesTotal:  &total,
			DistanceMeters: d.DistanceMeters,
		}
		if d.ActiveTimeSeconds != nil {
			delta.ActiveMinutes = int64Ptr(wholeMinutesFromSeconds(*d.ActiveTimeSeconds))
		}
		res.Summaries = append(res.Summaries, delta)
	}

	return res, nil
}

type garminBody struct {
	MeasurementDate   string           `json:"measurement_date"`
	WeightGrams       *decimal.Decimal `json:"weight_grams"`
	BodyFatPercentage *decimal.Decimal `json:"body_fat_percentage"`
	BMI               *decimal.Decimal `json:"bmi"`
	MeasurementTime   string           `json:"measurement_time"`
}

// normalizeGarminBody fans each body-composition summary out into one
// candidate per present property. Partial summaries are fine; a summary with
// no recognized properties contributes nothing.
func normalizeGarminBody(env Envelope, tbl *priority.Table) (*Result, error) {
	var bodies []garminBody
	if err := json.Unmarshal(env.Raw, &bodies); err != nil {
		return nil, malformedf("garmin body: undecodable summaries: %v", err)
	}

	pri := tbl.Lookup(env.Provider)
	res := &Result{ExternalUserID: env.ExternalUserID}

	for _, b := range bodies {
		if b.MeasurementDate == "" {
			return nil, malformedf("garmin body: missing measurement_date")
		}
		at := parseTimestamp(b.MeasurementTime)
		add := func(metric types.MetricType, v decimal.Decimal) {
			res.Observations = append(res.Observations, Candidate{
				Date:           b.MeasurementDate,
				MetricType:     metric,
				Value:          v,
				Source:         env.Provider,
				SourcePriority: pri,
				RecordedAt:     at,
			})
		}
		if b.WeightGrams != nil {
			// Canonical weight unit is kilograms.
			add(types.MetricWeight, b.WeightGrams.Div(decimal.NewFromInt(1000)).Round(4))
		}
		if b.BodyFatPercentage != nil {
			add(types.MetricBodyFatPercentage, *b.BodyFatPercentage)
		}
		if b.BMI != nil {
			add(types.MetricBMI, *b.BMI)
		}
	}

	return res, nil
}
