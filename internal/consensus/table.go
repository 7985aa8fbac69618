// Package consensus reduces agent votes into a single consensus recommendation.
package consensus

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Consensus-level action names used by the built-in table and the risk engine.
const (
	ActionDeRisk = "de-risk"
	ActionHold   = "hold"
	ActionBuy    = "buy"

	DefaultEmoji = "🟡"
)

// Band is one row of the action threshold table. A nil bound is absent.
type Band struct {
	Min    *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	Action string   `yaml:"action" json:"action"`
	Emoji  string   `yaml:"emoji" json:"emoji"`
}

// Contains applies the half-open membership rule. A band with neither bound
// contains nothing.
func (b Band) Contains(v float64) bool {
	switch {
	case b.Min == nil && b.Max != nil:
		return v < *b.Max
	case b.Min != nil && b.Max != nil:
		return *b.Min <= v && v < *b.Max
	case b.Min != nil:
		return v >= *b.Min
	default:
		return false
	}
}

// Table is an ordered list of bands; earlier bands take priority.
type Table []Band

type tableFile struct {
	ConsensusToAction Table `yaml:"consensus_to_action"`
}

func bound(v float64) *float64 { return &v }

// DefaultTable returns the built-in three-band table.
func DefaultTable() Table {
	return Table{
		{Max: bound(40), Action: ActionDeRisk, Emoji: "🔴"},
		{Min: bound(40), Max: bound(60), Action: ActionHold, Emoji: "🟡"},
		{Min: bound(60), Action: ActionBuy, Emoji: "🟢"},
	}
}

// Match returns the first band containing v.
func (t Table) Match(v float64) (Band, bool) {
	for _, b := range t {
		if b.Contains(v) {
			return b, true
		}
	}
	return Band{}, false
}

// Lookup returns the first band tagged with action.
func (t Table) Lookup(action string) (Band, bool) {
	for _, b := range t {
		if b.Action == action {
			return b, true
		}
	}
	return Band{}, false
}

// ParseTable decodes the consensus_to_action YAML layout.
func ParseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse action map: %w", err)
	}
	if len(f.ConsensusToAction) == 0 {
		return nil, fmt.Errorf("action map has no consensus_to_action bands")
	}
	for i, b := range f.ConsensusToAction {
		if b.Action == "" {
			return nil, fmt.Errorf("action map band %d has no action", i)
		}
	}
	return f.ConsensusToAction, nil
}

// LoadTable reads the table from path. A missing or malformed file logs a
// warning and yields DefaultTable; it is never fatal.
func LoadTable(path string, logger zerolog.Logger) Table {
	if path == "" {
		return DefaultTable()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Action map unavailable, using default table")
		return DefaultTable()
	}

	table, err := ParseTable(data)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Action map invalid, using default table")
		return DefaultTable()
	}

	logger.Debug().Str("path", path).Int("bands", len(table)).Msg("Loaded action map")
	return table
}

// Marshal renders the table in the consensus_to_action layout.
func (t Table) Marshal() ([]byte, error) {
	return yaml.Marshal(tableFile{ConsensusToAction: t})
}
