package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/models"
	"crypto-swarm/internal/scoring"
)

// ParseFailureRationale is the rationale of the vote used when the model's
// answer cannot be decoded.
const ParseFailureRationale = "Failed to parse LLM response."

const systemPrompt = "You are a cryptocurrency market analyst. Respond with a single JSON object and nothing else."

// DefaultPromptTemplate asks for a JSON vote. Placeholders use text/template.
const DefaultPromptTemplate = `You are {{.AgentName}}, a cryptocurrency market analyst with the following philosophy:
{{.Philosophy}}

Today's market indicators:
{{.Indicators}}

Based on these indicators and your philosophy, provide:
1. A market score from 0-100 (where 0 is extremely bearish, 100 is extremely bullish)
2. A recommended action (STRONG_BUY, BUY, HOLD, SELL, STRONG_SELL)
3. Your confidence level (0.0-1.0)
4. A brief rationale for your analysis

Format your response as a JSON object with the following structure:
{
    "score": <0-100>,
    "action": "<ACTION>",
    "confidence": <0.0-1.0>,
    "rationale": "<your explanation>"
}
`

type promptData struct {
	AgentName  string
	Philosophy string
	Indicators string
}

// LLMAgent asks a language model for its vote and keeps the rule-based
// baseline alongside the answer.
type LLMAgent struct {
	BaseAgent
	client LLMClient
	prompt *template.Template
}

// NewLLMAgent creates an LLM agent. A nil client makes the agent vote with
// its baseline.
func NewLLMAgent(spec Spec, client LLMClient, logger zerolog.Logger) (*LLMAgent, error) {
	tmpl, err := parsePrompt(spec.Name, spec.PromptTemplate)
	if err != nil {
		return nil, apperr.NewAgentError(spec.Name, "parse prompt", err)
	}
	return &LLMAgent{
		BaseAgent: NewBaseAgent(spec, logger),
		client:    client,
		prompt:    tmpl,
	}, nil
}

// parsePrompt accepts text/template syntax, or the brace placeholders
// {agent_name}, {philosophy} and {indicators} used by older spec files.
func parsePrompt(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	} else if !strings.Contains(text, "{{") {
		text = strings.NewReplacer(
			"{agent_name}", "{{.AgentName}}",
			"{philosophy}", "{{.Philosophy}}",
			"{indicators}", "{{.Indicators}}",
		).Replace(text)
	}
	return template.New(name).Parse(text)
}

// BuildPrompt renders the prompt for the given indicators.
func (a *LLMAgent) BuildPrompt(indicators models.Indicators) (string, error) {
	var buf bytes.Buffer
	err := a.prompt.Execute(&buf, promptData{
		AgentName:  a.spec.Name,
		Philosophy: a.spec.Philosophy,
		Indicators: FormatIndicators(indicators),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatIndicators renders one "name: value (signal)" line per indicator in
// name order.
func FormatIndicators(indicators models.Indicators) string {
	names := indicators.Names()
	sort.Strings(names)
	lines := make([]string, len(names))
	for i, name := range names {
		ind := indicators[name]
		lines[i] = fmt.Sprintf("%s: %g (%s)", name, ind.Value, ind.Signal.Normalize())
	}
	return strings.Join(lines, "\n")
}

// Analyze implements Agent. Model failures degrade to the parse-failure vote
// rather than an error.
func (a *LLMAgent) Analyze(ctx context.Context, indicators models.Indicators) (*models.Vote, error) {
	base := a.Evaluate(indicators)
	a.logger.Info().Float64("score", base.Score).Str("action", string(base.Action)).Msg("Baseline analysis")

	var vote *models.Vote
	if a.client == nil {
		vote = a.NewVote(base.Score, base.Action, DistanceConfidence(base.Score),
			"No language model configured; vote reflects the rule-based baseline.", base)
	} else {
		prompt, err := a.BuildPrompt(indicators)
		if err != nil {
			return nil, apperr.NewAgentError(a.Name(), "render prompt", err)
		}

		answer, err := a.client.Complete(ctx, CompletionRequest{
			Model:       a.spec.Model,
			Temperature: a.spec.Temperature,
			System:      systemPrompt,
			Prompt:      prompt,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, apperr.NewAgentError(a.Name(), "complete", ctxErr)
			}
			a.logger.Error().Err(err).Msg("LLM call failed")
			answer = ""
		}

		parsed, ok := ParseLLMResponse(answer, base.Score, base.Action)
		if !ok {
			a.logger.Warn().Msg("Could not parse LLM response, using neutral vote")
		}
		vote = a.NewVote(parsed.Score, parsed.Action, parsed.Confidence, parsed.Rationale, base)
	}

	vote.Baseline = &models.Baseline{Score: base.Score, Action: base.Action}
	logging.LogVote(a.logger, a.Name(), string(vote.Action), vote.Score, vote.Confidence)
	return vote, nil
}

// ParsedVote is the decoded model answer.
type ParsedVote struct {
	Score      float64
	Action     models.Action
	Confidence float64
	Rationale  string
}

// ParseLLMResponse decodes the model's JSON answer. Code fences and text
// around the object are ignored. Missing score and action fall back to the
// baseline, missing confidence to 0.5; the score is clamped to [0, 100] and
// an unknown action is derived from the score. When no JSON object can be
// decoded the neutral parse-failure vote is returned with ok false.
func ParseLLMResponse(answer string, baselineScore float64, baselineAction models.Action) (ParsedVote, bool) {
	failed := ParsedVote{
		Score:      models.NeutralScore,
		Action:     models.Hold,
		Confidence: models.DefaultConfidence,
		Rationale:  ParseFailureRationale,
	}

	body := extractJSONObject(answer)
	if body == "" {
		return failed, false
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return failed, false
	}

	out := ParsedVote{
		Score:      baselineScore,
		Action:     baselineAction,
		Confidence: models.DefaultConfidence,
	}

	if v, ok := numeric(fields["score"]); ok {
		out.Score = scoring.Clamp(v, scoring.MinScore, scoring.MaxScore)
		out.Action = scoring.DetermineAction(out.Score)
	}
	if s, ok := fields["action"].(string); ok {
		action := models.Action(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")))
		if action.Valid() {
			out.Action = action
		}
	}
	if v, ok := numeric(fields["confidence"]); ok {
		out.Confidence = ClampConfidence(v)
	}
	if s, ok := fields["rationale"].(string); ok {
		out.Rationale = strings.TrimSpace(s)
	}

	return out, true
}

func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// numeric accepts JSON numbers and numeric strings. NaN and infinities are
// rejected so the baseline value stands in for them.
func numeric(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
