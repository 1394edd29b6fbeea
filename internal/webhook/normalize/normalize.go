package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/vitalsync/vitalsync-backend/internal/pkg/errors"
	"github.com/vitalsync/vitalsync-backend/internal/priority"
	"github.com/vitalsync/vitalsync-backend/internal/types"
)

// Candidate is one normalized point-metric observation proposed for a slot.
// RecordedAt is zero when the payload carried no timestamp; the orchestrator
// substitutes the delivery receipt time.
type Candidate struct {
	Date           string
	MetricType     types.MetricType
	Value          decimal.Decimal
	Source         string
	SourcePriority int
	RecordedAt     time.Time
}

// SummaryDelta is a normalized daily-aggregate contribution. Nil fields were
// absent from the payload and must not touch the stored summary; aggregate
// counters (steps, calories) are always set, defaulting to zero.
type SummaryDelta struct {
	Date           string
	Source         string
	SourcePriority int
	Steps          *int64
	ActiveMinutes  *int64
	CaloriesTotal  *decimal.Decimal
	CaloriesActive *decimal.Decimal
	DistanceMeters *decimal.Decimal
	Metadata       map[string]interface{}
}

// Result is everything a single delivery normalizes into.
type Result struct {
	ExternalUserID string
	Observations   []Candidate
	Summaries      []SummaryDelta
}

// Func normalizes one (provider, payload-type) pair. Implementations are pure:
// same bytes in, same records out, no I/O.
type Func func(env Envelope, tbl *priority.Table) (*Result, error)

// Envelope is the provider-independent view of a delivery after the
// provider-specific discriminators have been extracted.
type Envelope struct {
	Provider       string
	PayloadType    string
	ExternalUserID string
	Raw            []byte
}

type envelopeFunc func(provider string, raw []byte) (Envelope, error)

var envelopeParsers = map[string]envelopeFunc{
	"whoop":        parseWhoopEnvelope,
	"oura":         parseOuraEnvelope,
	"garmin":       parseGarminEnvelope,
	"fitbit":       parseFitbitEnvelope,
	"apple_health": parseAppleHealthEnvelope,
	"terra":        parseTerraEnvelope,
}

var normalizers = map[string]map[string]Func{
	"whoop": {
		"recovery": normalizeWhoopRecovery,
		"sleep":    normalizeWhoopSleep,
		"workout":  normalizeWhoopWorkout,
	},
	"oura": {
		"sleep":     normalizeOuraSleep,
		"readiness": normalizeOuraReadiness,
		"activity":  normalizeOuraActivity,
	},
	"garmin": {
		"daily":            normalizeGarminDaily,
		"body_composition": normalizeGarminBody,
	},
	"fitbit": {
		"activities": normalizeFitbitActivities,
		"body":       normalizeFitbitBody,
	},
	"apple_health": {
		"daily_summary": normalizeAppleHealthSummary,
		"body_metrics":  normalizeAppleHealthBody,
	},
	"terra": {
		"body":  normalizeTerraBody,
		"daily": normalizeTerraDaily,
		"sleep": normalizeTerraSleep,
	},
}

// Normalize maps one raw delivery from provider into canonical records.
// Providers without a dedicated codec (manual entries, new integrations)
// fall back to the generic metrics envelope with their table priority, so an
// unlisted device is never dropped just for being unknown.
func Normalize(provider string, raw []byte, tbl *priority.Table) (*Result, error) {
	key := strings.ToLower(strings.TrimSpace(provider))

	parseEnvelope, ok := envelopeParsers[key]
	if !ok {
		parseEnvelope = parseGenericEnvelope
	}
	env, err := parseEnvelope(key, raw)
	if err != nil {
		return nil, err
	}
	if env.ExternalUserID == "" {
		return nil, malformedf("provider %s: missing external user id", key)
	}
	if env.PayloadType == "" {
		return nil, malformedf("provider %s: missing payload type", key)
	}

	fn := normalizers[key][env.PayloadType]
	if fn == nil {
		if _, dedicated := envelopeParsers[key]; dedicated {
			return nil, malformedf("provider %s: unsupported payload type %q", key, env.PayloadType)
		}
		fn = normalizeGenericMetrics
	}
	return fn(env, tbl)
}

func malformedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", apperrors.ErrPayloadMalformed, fmt.Sprintf(format, args...))
}

// flexID tolerates numeric and string external user ids.
func flexID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// secondsToMinutes converts a duration in seconds to minutes. Every duration
// in the canonical schema is minutes, regardless of the vendor unit.
func secondsToMinutes(seconds decimal.Decimal) decimal.Decimal {
	return seconds.Div(decimal.NewFromInt(60)).Round(2)
}

func wholeMinutesFromSeconds(seconds int64) int64 {
	return seconds / 60
}

// parseTimestamp passes vendor timestamps through without timezone
// conversion. Returns zero time when absent or unparseable; the orchestrator
// then stamps the delivery receipt time.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func zeroDecimal() *decimal.Decimal {
	z := decimal.Zero
	return &z
}

func orZero(v *decimal.Decimal) *decimal.Decimal {
	if v == nil {
		return zeroDecimal()
	}
	return v
}

func int64Ptr(v int64) *int64 { return &v }
