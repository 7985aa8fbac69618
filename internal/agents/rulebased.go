package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/models"
)

// RuleBasedAgent votes with the weighted composite of its indicators.
type RuleBasedAgent struct {
	BaseAgent
}

// NewRuleBasedAgent creates a rule-based agent.
func NewRuleBasedAgent(spec Spec, logger zerolog.Logger) *RuleBasedAgent {
	return &RuleBasedAgent{BaseAgent: NewBaseAgent(spec, logger)}
}

// Analyze implements Agent. A fixed confidence in the spec takes precedence
// over the distance-from-neutral policy.
func (a *RuleBasedAgent) Analyze(ctx context.Context, indicators models.Indicators) (*models.Vote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := a.Evaluate(indicators)

	confidence := DistanceConfidence(base.Score)
	if a.spec.Confidence != nil {
		confidence = ClampConfidence(*a.spec.Confidence)
	}

	vote := a.NewVote(base.Score, base.Action, confidence, ruleRationale(base), base)
	logging.LogVote(a.logger, a.Name(), string(vote.Action), vote.Score, vote.Confidence)
	return vote, nil
}

func ruleRationale(base Baseline) string {
	if len(base.Weighting.Signals) == 0 {
		return "No weighted indicators were available; defaulting to a neutral hold stance."
	}

	names := make([]string, 0, len(base.Weighting.Signals))
	for name := range base.Weighting.Signals {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		s := base.Weighting.Signals[name]
		parts[i] = fmt.Sprintf("%s %s", name, s.Signal.Normalize())
	}

	return fmt.Sprintf("My analysis shows a score of %.1f, indicating a %s stance (%s).",
		base.Score, describeAction(base.Action), strings.Join(parts, ", "))
}
