// Package agents provides the analyst agents that vote on the daily indicators.
package agents

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/models"
	"crypto-swarm/internal/scoring"
)

// Agent defines the interface for analyst agents.
type Agent interface {
	// Name returns the unique name of the agent.
	Name() string
	// Type returns the agent kind, e.g. rule_based or llm.
	Type() string
	// Analyze scores the indicators and returns the agent's vote.
	Analyze(ctx context.Context, indicators models.Indicators) (*models.Vote, error)
}

// Confidence policy bounds for distance-from-neutral confidence.
const (
	MinConfidence = 0.3
	MaxConfidence = 0.95
)

// BaseAgent provides common functionality for all agents.
type BaseAgent struct {
	spec   Spec
	logger zerolog.Logger
}

// NewBaseAgent creates a base agent for spec.
func NewBaseAgent(spec Spec, logger zerolog.Logger) BaseAgent {
	return BaseAgent{
		spec:   spec,
		logger: logging.WithAgent(logger, spec.Name),
	}
}

// Name returns the agent's name.
func (b *BaseAgent) Name() string {
	return b.spec.Name
}

// Type returns the agent's type.
func (b *BaseAgent) Type() string {
	return b.spec.Type
}

// Spec returns the agent's definition.
func (b *BaseAgent) Spec() Spec {
	return b.spec
}

// Baseline is the rule-based evaluation shared by every agent kind.
type Baseline struct {
	Weighting scoring.Weighting
	Score     float64
	Action    models.Action
}

// Evaluate weights the indicators and reduces them to a composite score and
// action. Skipped weights and degenerate composites are logged.
func (b *BaseAgent) Evaluate(indicators models.Indicators) Baseline {
	w := scoring.Weigh(b.spec.Weights, indicators)
	for _, s := range w.Skipped {
		b.logger.Warn().
			Str("indicator", s.Indicator).
			Float64("weight", s.Weight).
			Str("reason", string(s.Reason)).
			Msg("Skipping weighted indicator")
	}
	if w.Synthesized {
		b.logger.Debug().Int("indicators", len(w.Signals)).Msg("No weights declared, using equal weights")
	}

	score, degenerate := scoring.Composite(w.Signals)
	if degenerate != scoring.NotDegenerate {
		b.logger.Warn().Str("reason", string(degenerate)).Msg("Composite score defaulted to neutral")
	}

	action := scoring.DetermineAction(score)
	b.logger.Debug().Float64("score", score).Str("action", string(action)).Msg("Calculated composite score")

	return Baseline{Weighting: w, Score: score, Action: action}
}

// NewVote builds a vote stamped with the agent's identity.
func (b *BaseAgent) NewVote(score float64, action models.Action, confidence float64, rationale string, base Baseline) *models.Vote {
	return &models.Vote{
		AgentName:       b.spec.Name,
		AgentType:       b.spec.Type,
		Score:           score,
		Action:          action,
		Confidence:      confidence,
		Rationale:       rationale,
		WeightedSignals: base.Weighting.Signals,
	}
}

// DistanceConfidence grows from 0.5 at the neutral score toward 0.9 at the
// extremes, clamped to [MinConfidence, MaxConfidence].
func DistanceConfidence(score float64) float64 {
	distance := math.Abs(score-models.NeutralScore) / models.NeutralScore
	return scoring.Clamp(0.5+distance*0.4, MinConfidence, MaxConfidence)
}

// ClampConfidence ensures confidence is within [0, 1].
func ClampConfidence(confidence float64) float64 {
	return scoring.Clamp(confidence, 0, 1)
}

func describeAction(action models.Action) string {
	return strings.ToLower(strings.ReplaceAll(string(action), "_", " "))
}
