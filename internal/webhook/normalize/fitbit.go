package normalize

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

type fitbitEnvelope struct {
	CollectionType string          `json:"collection_type"`
	OwnerID        json.RawMessage `json:"owner_id"`
	Date           string          `json:"date"`
	Data           json.RawMessage `json:"data"`
}

func parseFitbitEnvelope(provider string, raw []byte) (Envelope, error) {
	var env fitbitEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, malformedf("fitbit: undecodable body: %v", err)
	}
	// The slot date lives on the envelope for fitbit; tunnel it to the
	// payload normalizer next to the data object.
	inner, err := json.Marshal(struct {
		Date string          `json:"date"`
		Data json.RawMessage `json:"data"`
	}{Date: env.Date, Data: env.Data})
	if err != nil {
		return Envelope{}, malformedf("fitbit: re-encode data: %v", err)
	}
	return Envelope{
		Provider:       provider,
		PayloadType:    env.CollectionType,
		ExternalUserID: flexID(env.OwnerID),
		Raw:            inner,
	}, nil
}

type fitbitActivities struct {
	Date string `json:"date"`
	Data struct {
		Steps               *int64           `json:"steps"`
		CaloriesOut         *decimal.Decimal `json:"calories_out"`
		ActivityCalories    *decimal.Decimal `json:"activity_calories"`
		FairlyActiveMinutes *int64           `json:"fairly_active_minutes"`
		VeryActiveMinutes   *int64           `json:"very_active_minutes"`
		DistanceKm          *decimal.Decimal `json:"distance_km"`
	} `json:"data"`
}

func normalizeFitbitActivities(env Envelope, tbl *priority.Table) (*Result, error) {
	var act fitbitActivities
	if err := json.Unmarshal(env.Raw, &act); err != nil {
		return nil, malformedf("fitbit activities: undecodable data: %v", err)
	}
	if act.Date == "" {
		return nil, malformedf("fitbit activities: missing date")
	}

	steps := int64(0)
	if act.Data.Steps != nil {
		steps = *act.Data.Steps
	}
	delta := SummaryDelta{
		Date:           act.Date,
		Source:         env.Provider,
		SourcePriority: tbl.Lookup(env.Provider),
		Steps:          &steps,
		CaloriesTotal:  orZero(act.Data.CaloriesOut),
		CaloriesActive: orZero(act.Data.ActivityCalories),
	}
	if act.Data.DistanceKm != nil {
		// Canonical distance unit is meters.
		meters := act.Data.DistanceKm.Mul(decimal.NewFromInt(1000)).Round(4)
		delta.DistanceMeters = &meters
	}
	if act.Data.FairlyActiveMinutes != nil || act.Data.VeryActiveMinutes != nil {
		var minutes int64
		if act.Data.FairlyActiveMinutes != nil {
			minutes += *act.Data.FairlyActiveMinutes
		}
		if act.Data.VeryActiveMinutes != nil {
			minutes += *act.Data.VeryActiveMinutes
		}
		delta.ActiveMinutes = &minutes
	}

	return &Result{
		ExternalUserID: env.ExternalUserID,
		Summaries:      []SummaryDelta{delta},
	}, nil
}

type fitbitBody struct {
	Date string `json:"date"`
	Data struct {
		Weight  *decimal.Decimal `json:"weight"`
		Fat     *decimal.Decimal `json:"fat"`
		BMI     *decimal.Decimal `json:"bmi"`
		LogTime string           `json:"log_time"`
	} `json:"data"`
}

func normalizeFitbitBody(env Envelope, tbl *priority.Table) (*Result, error) {
	var body fitbitBody
	if err := json.Unmarshal(env.Raw, &body); err != nil {
		return nil, malformedf("fitbit body: undecodable data: %v", err)
	}
	if body.Date == "" {
		return nil, malformedf("fitbit body: missing date")
	}

	pri := tbl.Lookup(env.Provider)
	at := parseTimestamp(body.Data.LogTime)
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
	add(types.MetricWeight, body.Data.Weight)
	add(types.MetricBodyFatPercentage, body.Data.Fat)
	add(types.MetricBMI, body.Data.BMI)

	return res, nil
}
