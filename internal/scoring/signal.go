// Package scoring converts indicator signals into per-voter composite scores.
package scoring

import "crypto-swarm/internal/models"

// Base scores for each signal class.
const (
	BullishScore = 75
	NeutralScore = 50
	BearishScore = 25
)

// ScoreSignal maps a qualitative signal to its base score. Any value other
// than bullish or bearish scores as neutral.
func ScoreSignal(signal models.Signal) int {
	switch signal {
	case models.SignalBullish:
		return BullishScore
	case models.SignalBearish:
		return BearishScore
	default:
		return NeutralScore
	}
}
