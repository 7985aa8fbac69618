package models

// RiskFlag records one hard risk threshold that fired.
type RiskFlag struct {
	Flag        string  `json:"flag"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Emoji       string  `json:"emoji"`
}

// Consensus is the cross-agent recommendation for a day. The aggregator
// produces it and the risk engine amends the risk fields.
type Consensus struct {
	RunID          string         `json:"run_id,omitempty"`
	Date           string         `json:"date"`
	Timestamp      string         `json:"timestamp"`
	Score          float64        `json:"score"`
	Action         string         `json:"action"`
	Emoji          string         `json:"emoji"`
	AgentVotes     []Vote         `json:"agent_votes"`
	Distribution   map[string]int `json:"distribution"`
	AgreementLevel float64        `json:"agreement_level"`
	MajorityAction string         `json:"majority_action"`
	RiskFlags      []RiskFlag     `json:"risk_flags"`
	RiskOverride   bool           `json:"risk_override"`
	OriginalAction string         `json:"original_action,omitempty"`
}

// Clone returns a deep copy so later stages never alias an earlier stage's record.
func (c *Consensus) Clone() *Consensus {
	if c == nil {
		return nil
	}
	out := *c
	if c.AgentVotes != nil {
		out.AgentVotes = make([]Vote, len(c.AgentVotes))
		for i, v := range c.AgentVotes {
			out.AgentVotes[i] = v
			if v.WeightedSignals != nil {
				ws := make(map[string]WeightedSignal, len(v.WeightedSignals))
				for k, s := range v.WeightedSignals {
					ws[k] = s
				}
				out.AgentVotes[i].WeightedSignals = ws
			}
			if v.Baseline != nil {
				b := *v.Baseline
				out.AgentVotes[i].Baseline = &b
			}
		}
	}
	if c.Distribution != nil {
		out.Distribution = make(map[string]int, len(c.Distribution))
		for k, n := range c.Distribution {
			out.Distribution[k] = n
		}
	}
	if c.RiskFlags != nil {
		out.RiskFlags = append([]RiskFlag(nil), c.RiskFlags...)
	}
	return &out
}
