package scoring

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"crypto-swarm/internal/models"
)

func signalGen() gopter.Gen {
	return gen.OneConstOf(
		models.SignalBullish,
		models.SignalNeutral,
		models.SignalBearish,
		models.Signal(""),
		models.Signal("sideways"),
	)
}

// indicatorsFrom builds a named indicator set from parallel slices.
func indicatorsFrom(values []float64, signals []models.Signal) models.Indicators {
	n := len(values)
	if len(signals) < n {
		n = len(signals)
	}
	out := make(models.Indicators, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("ind_%d", i)
		out[name] = models.Indicator{Name: name, Value: values[i], Signal: signals[i]}
	}
	return out
}

// Property: For any set of weighted signals, the composite is within [0, 100].
func TestProperty_CompositeWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Composite is within [0, 100]", prop.ForAll(
		func(values []float64, signals []models.Signal, weights []float64) bool {
			inds := indicatorsFrom(values, signals)
			declared := make(map[string]float64)
			i := 0
			for name := range inds {
				if i < len(weights) {
					declared[name] = weights[i]
				}
				i++
			}
			w := Weigh(declared, inds)
			score, _ := Composite(w.Signals)
			return score >= MinScore && score <= MaxScore
		},
		gen.SliceOfN(6, gen.Float64Range(0, 10)),
		gen.SliceOfN(6, signalGen()),
		gen.SliceOfN(6, gen.Float64Range(0, 5)),
	))

	properties.TestingRun(t)
}

// Property: Without declared weights the composite equals the unweighted mean
// of the base scores, and the equal weights sum to 1.
func TestProperty_EqualWeightFallback(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Equal weights yield the mean base score", prop.ForAll(
		func(signals []models.Signal) bool {
			values := make([]float64, len(signals))
			inds := indicatorsFrom(values, signals)
			w := Weigh(nil, inds)
			if !w.Synthesized || len(w.Signals) != len(inds) {
				return false
			}

			var sumWeights, sumBase float64
			for _, s := range w.Signals {
				sumWeights += s.Weight
				sumBase += float64(s.BaseScore)
			}
			if math.Abs(sumWeights-1) > 1e-9 {
				return false
			}

			score, reason := Composite(w.Signals)
			return reason == NotDegenerate && math.Abs(score-sumBase/float64(len(inds))) < 1e-9
		},
		gen.SliceOfN(5, signalGen()).SuchThat(func(s []models.Signal) bool { return len(s) > 0 }),
	))

	properties.TestingRun(t)
}

// Property: DetermineAction is monotonic, so a higher score never yields a
// more bearish action.
func TestProperty_DetermineActionMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	rank := map[models.Action]int{
		models.StrongSell: 0,
		models.Sell:       1,
		models.Hold:       2,
		models.Buy:        3,
		models.StrongBuy:  4,
	}

	properties.Property("Higher score never maps to a lower action", prop.ForAll(
		func(a, b float64) bool {
			lo, hi := math.Min(a, b), math.Max(a, b)
			return rank[DetermineAction(lo)] <= rank[DetermineAction(hi)]
		},
		gen.Float64Range(0, 100),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}
