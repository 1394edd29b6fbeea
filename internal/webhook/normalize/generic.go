package normalize

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

// The generic codec serves manual entries and any provider without a
// dedicated codec. The body is already canonical: a metrics map keyed by
// metric type, a slot date, and an external user id.
type genericEnvelope struct {
	Type           string          `json:"type"`
	ExternalUserID json.RawMessage `json:"external_user_id"`
	Date           string          `json:"date"`
	RecordedAt     string          `json:"recorded_at"`
	Metrics        json.RawMessage `json:"metrics"`
}

func parseGenericEnvelope(provider string, raw []byte) (Envelope, error) {
	var env genericEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, malformedf("%s: undecodable body: %v", provider, err)
	}
	inner, err := json.Marshal(struct {
		Date       string          `json:"date"`
		RecordedAt string          `json:"recorded_at"`
		Metrics    json.RawMessage `json:"metrics"`
	}{Date: env.Date, RecordedAt: env.RecordedAt, Metrics: env.Metrics})
	if err != nil {
		return Envelope{}, malformedf("%s: re-encode metrics: %v", provider, err)
	}
	return Envelope{
		Provider:       provider,
		PayloadType:    env.Type,
		ExternalUserID: flexID(env.ExternalUserID),
		Raw:            inner,
	}, nil
}

// normalizeGenericMetrics emits one candidate per recognized metric key.
// Unrecognized keys are skipped rather than failing the delivery.
func normalizeGenericMetrics(env Envelope, tbl *priority.Table) (*Result, error) {
	var body struct {
		Date       string                     `json:"date"`
		RecordedAt string                     `json:"recorded_at"`
		Metrics    map[string]decimal.Decimal `json:"metrics"`
	}
	if err := json.Unmarshal(env.Raw, &body); err != nil {
		return nil, malformedf("%s: undecodable metrics: %v", env.Provider, err)
	}
	if body.Date == "" {
		return nil, malformedf("%s: missing date", env.Provider)
	}

	pri := tbl.Lookup(env.Provider)
	at := parseTimestamp(body.RecordedAt)
	res := &Result{ExternalUserID: env.ExternalUserID}

	for key, value := range body.Metrics {
		metric, ok := types.ParseMetricType(key)
		if !ok {
			continue
		}
		res.Observations = append(res.Observations, Candidate{
			Date:           body.Date,
			MetricType:     metric,
			Value:          value,
			Source:         env.Provider,
			SourcePriority: pri,
			RecordedAt:     at,
		})
	}

	return res, nil
}
