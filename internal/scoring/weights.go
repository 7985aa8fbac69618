package scoring

import (
	"sort"

	"crypto-swarm/internal/models"
)

// SkipReason explains why a declared weight produced no weighted signal.
type SkipReason string

const (
	SkipMissingIndicator SkipReason = "indicator not available"
	SkipNegativeWeight   SkipReason = "negative weight"
)

// Skipped is a declared weight that was ignored.
type Skipped struct {
	Indicator string
	Weight    float64
	Reason    SkipReason
}

// Weighting is the outcome of applying a voter's weights.
type Weighting struct {
	Signals map[string]models.WeightedSignal
	Skipped []Skipped
	// Synthesized is true when no weights were declared and equal weights
	// over every available indicator were used instead.
	Synthesized bool
}

// EffectiveWeights returns the weights a voter actually uses. Declared
// weights are returned as-is; an empty declaration yields 1/n for every
// available indicator. The declared map is never modified.
func EffectiveWeights(declared map[string]float64, available models.Indicators) (map[string]float64, bool) {
	if len(declared) > 0 || len(available) == 0 {
		return declared, false
	}
	equal := 1.0 / float64(len(available))
	weights := make(map[string]float64, len(available))
	for name := range available {
		weights[name] = equal
	}
	return weights, true
}

// Weigh converts the voter's weights and the available indicators into
// weighted signals. Weights naming an absent indicator are skipped, not
// treated as errors.
func Weigh(declared map[string]float64, available models.Indicators) Weighting {
	weights, synthesized := EffectiveWeights(declared, available)

	out := Weighting{
		Signals:     make(map[string]models.WeightedSignal, len(weights)),
		Synthesized: synthesized,
	}

	for name, weight := range weights {
		ind, ok := available[name]
		if !ok {
			out.Skipped = append(out.Skipped, Skipped{Indicator: name, Weight: weight, Reason: SkipMissingIndicator})
			continue
		}
		if weight < 0 {
			out.Skipped = append(out.Skipped, Skipped{Indicator: name, Weight: weight, Reason: SkipNegativeWeight})
			continue
		}

		base := ScoreSignal(ind.Signal)
		out.Signals[name] = models.WeightedSignal{
			RawValue:      ind.Value,
			Signal:        ind.Signal,
			BaseScore:     base,
			Weight:        weight,
			WeightedScore: float64(base) * weight,
		}
	}

	sort.Slice(out.Skipped, func(i, j int) bool {
		return out.Skipped[i].Indicator < out.Skipped[j].Indicator
	})

	return out
}
