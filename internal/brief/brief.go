// Package brief renders the markdown daily brief.
package brief

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/indicators"
	"crypto-swarm/internal/models"
)

// DisagreementThreshold is the agreement level below which the brief warns.
const DisagreementThreshold = 0.5

// DefaultKeyIndicators are listed in the Key Indicators section.
var DefaultKeyIndicators = []string{indicators.NameCBBI, indicators.NameRainbowBands, indicators.NamePiCycle}

// DefaultTemplate is used when no template file is configured.
const DefaultTemplate = `# Crypto Market Brief - {{.Date}}

## Consensus View {{.Consensus.Emoji}}
**Score:** {{round1 .Consensus.Score}}/100
**Action:** {{upper .Consensus.Action}}
{{if .Consensus.RiskOverride}}
⚠️ **RISK OVERRIDE ACTIVE:** Original action "{{upper .Consensus.OriginalAction}}" overridden to "{{upper .Consensus.Action}}" due to risk flags.
{{end}}{{if .Disagreement}}
⚠️ **Warning:** Significant disagreement detected among agents ({{percent .Consensus.AgreementLevel}}% agreement)
{{end}}
## Risk Flags
{{if .Consensus.RiskFlags}}{{range .Consensus.RiskFlags}}- {{.Emoji}} **{{.Name}}**: {{.Description}} (value: {{round2 .Value}})
{{end}}{{else}}No critical risk flags detected.
{{end}}
## Key Indicators
{{range .Indicators}}- **{{.Name}}:** {{round2 .Value}} (signal: {{.Signal}})
{{else}}No indicator data available.
{{end}}
## Agent Votes
{{range .Consensus.AgentVotes}}
### {{.AgentName}}
- **Score:** {{round1 .Score}}/100
- **Action:** {{.Action}}
- **Confidence:** {{percent1 .Confidence}}%
- **Rationale:** {{.Rationale}}
{{end}}
## Agent Signal Analysis
{{range .Signals}}
### {{.Agent}} - Signal Weights
{{range .Weights}}- **{{.Name}}**: Base score {{.BaseScore}} × Weight {{.Weight}} = {{round1 .WeightedScore}}
{{end}}{{end}}
*Generated by the Crypto Analyst Agent Swarm on {{.GeneratedAt}}*
`

// Input is what a brief is rendered from.
type Input struct {
	Date       string
	Consensus  *models.Consensus
	Indicators models.Indicators
	// Votes carry the per-agent weighted signals; when empty the consensus
	// votes are used.
	Votes []models.Vote
}

// SignalWeight is one row of an agent's signal table.
type SignalWeight struct {
	Name          string
	BaseScore     int
	Weight        float64
	WeightedScore float64
}

// AgentSignals groups an agent's signal table.
type AgentSignals struct {
	Agent   string
	Weights []SignalWeight
}

type view struct {
	Date         string
	Consensus    *models.Consensus
	Disagreement bool
	Indicators   []models.Indicator
	Signals      []AgentSignals
	GeneratedAt  string
}

// Renderer executes the brief template.
type Renderer struct {
	tmpl          *template.Template
	keyIndicators []string
	now           func() time.Time
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"round1":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"round2":   func(v float64) string { return fmt.Sprintf("%.2f", v) },
		"percent":  func(v float64) string { return fmt.Sprintf("%.0f", math.Round(v*100)) },
		"percent1": func(v float64) string { return fmt.Sprintf("%.1f", v*100) },
		"upper":    strings.ToUpper,
	}
}

// NewRenderer parses text as the brief template. Empty text uses
// DefaultTemplate; nil keyIndicators uses DefaultKeyIndicators.
func NewRenderer(text string, keyIndicators []string) (*Renderer, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("brief").Funcs(funcs()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse brief template: %w", err)
	}
	if keyIndicators == nil {
		keyIndicators = DefaultKeyIndicators
	}
	return &Renderer{tmpl: tmpl, keyIndicators: keyIndicators, now: time.Now}, nil
}

// LoadRenderer reads the template at path. A missing or invalid file falls
// back to the default template with a warning.
func LoadRenderer(path string, keyIndicators []string, logger zerolog.Logger) *Renderer {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			r, perr := NewRenderer(string(data), keyIndicators)
			if perr == nil {
				return r
			}
			err = perr
		}
		logger.Warn().Err(err).Str("path", path).Msg("Using default brief template")
	}
	r, _ := NewRenderer("", keyIndicators)
	return r
}

// SetClock overrides the generation timestamp clock.
func (r *Renderer) SetClock(now func() time.Time) {
	r.now = now
}

// Render produces the markdown brief.
func (r *Renderer) Render(in Input) (string, error) {
	if in.Consensus == nil {
		return "", fmt.Errorf("render brief: no consensus for %s", in.Date)
	}
	date := in.Date
	if date == "" {
		date = in.Consensus.Date
	}

	votes := in.Votes
	if len(votes) == 0 {
		votes = in.Consensus.AgentVotes
	}

	v := view{
		Date:         date,
		Consensus:    in.Consensus,
		Disagreement: in.Consensus.AgreementLevel < DisagreementThreshold,
		Indicators:   r.selectIndicators(in.Indicators),
		Signals:      signalTables(votes),
		GeneratedAt:  r.now().Format(time.RFC3339),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render brief: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) selectIndicators(all models.Indicators) []models.Indicator {
	var out []models.Indicator
	for _, name := range r.keyIndicators {
		ind, ok := all.ByKey(name)
		if !ok {
			continue
		}
		ind.Name = name
		ind.Signal = ind.Signal.Normalize()
		out = append(out, ind)
	}
	return out
}

func signalTables(votes []models.Vote) []AgentSignals {
	var out []AgentSignals
	for _, vote := range votes {
		if len(vote.WeightedSignals) == 0 {
			continue
		}
		names := make([]string, 0, len(vote.WeightedSignals))
		for name := range vote.WeightedSignals {
			names = append(names, name)
		}
		sort.Strings(names)

		table := AgentSignals{Agent: vote.AgentName}
		for _, name := range names {
			s := vote.WeightedSignals[name]
			table.Weights = append(table.Weights, SignalWeight{
				Name:          name,
				BaseScore:     s.BaseScore,
				Weight:        s.Weight,
				WeightedScore: s.WeightedScore,
			})
		}
		out = append(out, table)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out
}
