package models

import "encoding/json"

// Neutral defaults applied to votes that omit fields.
const (
	NeutralScore      = 50.0
	DefaultConfidence = 0.5
)

// WeightedSignal is one indicator's contribution to a voter's composite score.
type WeightedSignal struct {
	RawValue      float64 `json:"raw_value"`
	Signal        Signal  `json:"signal"`
	BaseScore     int     `json:"base_score"`
	Weight        float64 `json:"weight"`
	WeightedScore float64 `json:"weighted_score"`
}

// Baseline is the rule-based score an LLM voter computed before asking the model.
type Baseline struct {
	Score  float64 `json:"score"`
	Action Action  `json:"action"`
}

// Vote is a single agent's output for a day.
type Vote struct {
	AgentName       string                    `json:"agent_name,omitempty"`
	AgentType       string                    `json:"agent_type,omitempty"`
	Date            string                    `json:"date,omitempty"`
	Timestamp       string                    `json:"timestamp,omitempty"`
	Score           float64                   `json:"score"`
	Action          Action                    `json:"action"`
	Confidence      float64                   `json:"confidence"`
	Rationale       string                    `json:"rationale"`
	WeightedSignals map[string]WeightedSignal `json:"weighted_signals,omitempty"`
	Baseline        *Baseline                 `json:"baseline,omitempty"`
}

// UnmarshalJSON fills absent score, action and confidence with neutral values
// so partially written agent outputs still aggregate.
func (v *Vote) UnmarshalJSON(data []byte) error {
	type rawVote Vote
	decoded := rawVote{
		Score:      NeutralScore,
		Action:     Hold,
		Confidence: DefaultConfidence,
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if decoded.Action == "" {
		decoded.Action = Hold
	}
	*v = Vote(decoded)
	return nil
}
