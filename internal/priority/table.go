package priority

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPriority is assigned to any provider not present in the table.
// Unlisted devices are never dropped for being unknown.
const DefaultPriority = 30

// OverrideThreshold is the priority at or above which an incoming source
// may overwrite an already-populated daily summary field.
const OverrideThreshold = 80

// Table is the immutable source-priority ranking, loaded once at startup.
type Table struct {
	ranks map[string]int
}

func defaultRanks() map[string]int {
	return map[string]int{
		"whoop":        100,
		"oura":         95,
		"garmin":       80,
		"polar":        75,
		"apple_health": 60,
		"terra":        55,
		"fitbit":       50,
		"manual":       40,
	}
}

// Defaults returns the built-in ranking.
func Defaults() *Table {
	return &Table{ranks: defaultRanks()}
}

// LoadFile reads a YAML map of provider -> priority and overlays it on the
// defaults. Entries in the file win; providers absent from both still
// resolve to DefaultPriority.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read priority table: %w", err)
	}
	var overrides map[string]int
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse priority table: %w", err)
	}
	ranks := defaultRanks()
	for provider, rank := range overrides {
		ranks[normalizeKey(provider)] = rank
	}
	return &Table{ranks: ranks}, nil
}

// Lookup resolves a provider identifier to its priority. Lookup is
// case-insensitive and never fails.
func (t *Table) Lookup(provider string) int {
	if t == nil {
		return DefaultPriority
	}
	if rank, ok := t.ranks[normalizeKey(provider)]; ok {
		return rank
	}
	return DefaultPriority
}

func normalizeKey(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
