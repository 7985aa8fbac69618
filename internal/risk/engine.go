// Package risk applies hard indicator limits on top of the voter consensus.
package risk

import (
	"fmt"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/consensus"
	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/models"
)

// FallbackEmoji is used when the table has no de-risk band.
const FallbackEmoji = "🔴"

// CheckID identifies a registered risk check.
type CheckID int

const (
	CheckCBBIHigh CheckID = iota
	CheckRainbowTop
	CheckPiCycleTop
)

// Check is a hard threshold on one indicator.
type Check struct {
	ID        CheckID
	Flag      string
	Indicator string
	Threshold float64
	Name      string
	Emoji     string
	describe  func(value float64) string
}

// Evaluate returns a flag when value crosses the threshold.
func (c Check) Evaluate(value float64) (models.RiskFlag, bool) {
	if value < c.Threshold {
		return models.RiskFlag{}, false
	}
	return models.RiskFlag{
		Flag:        c.Flag,
		Value:       value,
		Threshold:   c.Threshold,
		Name:        c.Name,
		Description: c.describe(value),
		Emoji:       c.Emoji,
	}, true
}

var registry = []Check{
	{
		ID:        CheckCBBIHigh,
		Flag:      "cbbi_high",
		Indicator: "cbbi",
		Threshold: 0.8,
		Name:      "High CBBI",
		Emoji:     "⚠️",
		describe: func(v float64) string {
			return fmt.Sprintf("CBBI value of %.2f indicates extreme market euphoria", v)
		},
	},
	{
		ID:        CheckRainbowTop,
		Flag:      "rainbow_top",
		Indicator: "rainbow_bands",
		Threshold: 7,
		Name:      "Top Rainbow Band",
		Emoji:     "🌈",
		describe: func(v float64) string {
			return fmt.Sprintf("BTC price is in band %g of the Rainbow Chart, indicating potential top", v)
		},
	},
	{
		ID:        CheckPiCycleTop,
		Flag:      "pi_cycle_top",
		Indicator: "pi_cycle",
		Threshold: 0.95,
		Name:      "Pi-Cycle Near Top",
		Emoji:     "π",
		describe: func(v float64) string {
			return fmt.Sprintf("Pi-Cycle value of %.2f indicates potential market top", v)
		},
	},
}

// Checks returns the registered checks in evaluation order.
func Checks() []Check {
	return append([]Check(nil), registry...)
}

// Engine applies risk overrides to a consensus.
type Engine struct {
	table  consensus.Table
	logger zerolog.Logger
}

// NewEngine creates an engine. An empty table selects the default table.
func NewEngine(table consensus.Table, logger zerolog.Logger) *Engine {
	if len(table) == 0 {
		table = consensus.DefaultTable()
	}
	return &Engine{table: table, logger: logging.WithStage(logger, "risk")}
}

// Flags evaluates every registered check against the indicators.
func (e *Engine) Flags(indicators models.Indicators) []models.RiskFlag {
	flags := []models.RiskFlag{}
	for _, check := range registry {
		ind, ok := indicators.ByKey(check.Indicator)
		if !ok {
			continue
		}
		if flag, fired := check.Evaluate(ind.Value); fired {
			logging.LogRiskFlag(e.logger, flag.Flag, flag.Value, flag.Threshold)
			flags = append(flags, flag)
		}
	}
	return flags
}

// Apply returns a new consensus with risk fields set. The input is not
// modified and agent votes and distribution are carried over unchanged.
// Applying twice with the same indicators gives the same result.
func (e *Engine) Apply(c *models.Consensus, indicators models.Indicators) *models.Consensus {
	out := c.Clone()
	out.RiskFlags = e.Flags(indicators)

	if len(out.RiskFlags) == 0 {
		if out.RiskOverride && out.OriginalAction != "" {
			out.Action = out.OriginalAction
			out.Emoji = consensus.DefaultEmoji
			if band, ok := e.table.Lookup(out.OriginalAction); ok {
				out.Emoji = band.Emoji
			}
			e.logger.Info().Str("action", out.Action).Msg("Risk flags cleared, restoring original action")
		}
		out.OriginalAction = ""
		out.RiskOverride = false
		return out
	}

	previous := out.Action
	if out.RiskOverride && out.OriginalAction != "" {
		previous = out.OriginalAction
	}
	if previous == "" {
		previous = consensus.ActionHold
	}

	out.OriginalAction = previous
	out.Action = consensus.ActionDeRisk
	out.Emoji = FallbackEmoji
	if band, ok := e.table.Lookup(consensus.ActionDeRisk); ok && band.Emoji != "" {
		out.Emoji = band.Emoji
	}
	out.RiskOverride = true

	e.logger.Info().
		Str("from", previous).
		Str("to", out.Action).
		Int("flags", len(out.RiskFlags)).
		Msg("Action overridden due to risk flags")

	return out
}
