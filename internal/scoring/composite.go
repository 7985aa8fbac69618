package scoring

import "crypto-swarm/internal/models"

// Score bounds for a composite.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Degenerate describes why a composite fell back to the neutral score.
type Degenerate string

const (
	NotDegenerate   Degenerate = ""
	NoSignals       Degenerate = "no weighted signals"
	ZeroTotalWeight Degenerate = "total weight is zero"
)

// Composite reduces weighted signals to a 0-100 weighted mean:
// sum(weighted_score) / sum(weight), clamped. Empty input or a zero total
// weight yields the neutral score and a non-empty Degenerate reason.
func Composite(signals map[string]models.WeightedSignal) (float64, Degenerate) {
	if len(signals) == 0 {
		return models.NeutralScore, NoSignals
	}

	var weightedSum, totalWeight float64
	for _, s := range signals {
		weightedSum += s.WeightedScore
		totalWeight += s.Weight
	}

	if totalWeight == 0 {
		return models.NeutralScore, ZeroTotalWeight
	}

	return Clamp(weightedSum/totalWeight, MinScore, MaxScore), NotDegenerate
}

// DetermineAction maps a composite score to a voter action. The extreme
// bands are checked first, so 25 is STRONG_SELL and 75 is STRONG_BUY.
func DetermineAction(score float64) models.Action {
	switch {
	case score >= 75:
		return models.StrongBuy
	case score >= 60:
		return models.Buy
	case score <= 25:
		return models.StrongSell
	case score <= 40:
		return models.Sell
	default:
		return models.Hold
	}
}

// Clamp restricts a value to the given range.
func Clamp(value, minVal, maxVal float64) float64 {
	if value < minVal {
		return minVal
	}
	if value > maxVal {
		return maxVal
	}
	return value
}
