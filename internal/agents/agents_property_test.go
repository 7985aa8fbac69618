package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"crypto-swarm/internal/models"
)

// Property: For any indicator set and non-negative weights, a rule-based vote
// has a score in [0, 100], an action derived from that score and a
// confidence within the distance policy bounds.
func TestProperty_RuleBasedVoteWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	names := []interface{}{"CBBI", "Rainbow Bands", "Pi Cycle", "MVRV", "Puell"}
	signalGen := gen.OneConstOf(models.SignalBullish, models.SignalNeutral, models.SignalBearish, models.Signal("odd"))

	indicatorsGen := gen.MapOf(gen.OneConstOf(names...), signalGen).Map(func(m map[string]models.Signal) models.Indicators {
		out := make(models.Indicators, len(m))
		for name, sig := range m {
			out[name] = models.Indicator{Name: name, Value: 1, Signal: sig}
		}
		return out
	})
	weightsGen := gen.MapOf(gen.OneConstOf(names...), gen.Float64Range(0, 5))

	properties.Property("vote is bounded and consistent", prop.ForAll(
		func(inds models.Indicators, weights map[string]float64) bool {
			agent := NewRuleBasedAgent(Spec{Name: "p", Type: TypeRuleBased, Weights: weights}, zerolog.Nop())
			vote, err := agent.Analyze(context.Background(), inds)
			if err != nil {
				return false
			}
			if vote.Score < 0 || vote.Score > 100 {
				return false
			}
			if vote.Confidence < MinConfidence || vote.Confidence > MaxConfidence {
				return false
			}
			return vote.Action.Valid()
		},
		indicatorsGen,
		weightsGen,
	))

	properties.TestingRun(t)
}

// Property: Whatever score, action and confidence the model answers with,
// the parsed vote is always within range and carries a valid action.
func TestProperty_ParsedLLMVoteAlwaysValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("parsed vote is valid", prop.ForAll(
		func(score, confidence float64, action string) bool {
			answer := fmt.Sprintf("```json\n{\"score\": %g, \"action\": %q, \"confidence\": %g}\n```", score, action, confidence)
			parsed, ok := ParseLLMResponse(answer, 50, models.Hold)
			if !ok {
				return false
			}
			if parsed.Score < 0 || parsed.Score > 100 {
				return false
			}
			if parsed.Confidence < 0 || parsed.Confidence > 1 {
				return false
			}
			return parsed.Action.Valid()
		},
		gen.Float64Range(-500, 500),
		gen.Float64Range(-2, 3),
		gen.OneConstOf("STRONG_BUY", "buy", "Hold", "sell", "strong sell", "YOLO", ""),
	))

	properties.TestingRun(t)
}
