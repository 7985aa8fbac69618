package agents

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperr "crypto-swarm/internal/errors"
)

// Agent types understood by the default registry.
const (
	TypeRuleBased = "rule_based"
	TypeLLM       = "llm"
)

// Spec is an agent definition as stored on disk. Fields the swarm does not
// interpret are kept in Extra and written back unchanged.
type Spec struct {
	Name           string             `json:"name" validate:"required"`
	Type           string             `json:"type" default:"rule_based"`
	Description    string             `json:"description,omitempty"`
	Philosophy     string             `json:"philosophy,omitempty"`
	Weights        map[string]float64 `json:"weights" validate:"omitempty,dive,gte=0"`
	Confidence     *float64           `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
	Model          string             `json:"model,omitempty" default:"gpt-4o-mini"`
	Temperature    float64            `json:"temperature,omitempty" default:"0.7" validate:"gte=0,lte=2"`
	PromptTemplate string             `json:"prompt_template,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownSpecKeys = map[string]bool{
	"name": true, "type": true, "description": true, "philosophy": true,
	"weights": true, "confidence": true, "model": true, "temperature": true,
	"prompt_template": true,
}

type rawSpec Spec

// UnmarshalJSON decodes the known fields and keeps everything else in Extra.
// A spec saved with "agent_name" instead of "name" is accepted.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var decoded rawSpec
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for key, value := range all {
		if knownSpecKeys[key] {
			continue
		}
		if decoded.Extra == nil {
			decoded.Extra = make(map[string]json.RawMessage)
		}
		decoded.Extra[key] = value
	}

	if decoded.Name == "" {
		if raw, ok := decoded.Extra["agent_name"]; ok {
			_ = json.Unmarshal(raw, &decoded.Name)
		}
	}

	*s = Spec(decoded)
	return nil
}

// MarshalJSON writes the known fields merged with Extra.
func (s Spec) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(rawSpec(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(s.Extra)+len(knownSpecKeys))
	for k, v := range s.Extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// DecodeSpecJSON parses a JSON agent spec.
func DecodeSpecJSON(data []byte) (Spec, error) {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return Spec{}, fmt.Errorf("decode agent spec: %w", err)
	}
	return s, nil
}

// DecodeSpecYAML parses a YAML agent spec through the same JSON decoder so
// both formats preserve unknown fields identically.
func DecodeSpecYAML(data []byte) (Spec, error) {
	var generic map[string]interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return Spec{}, fmt.Errorf("decode agent spec: %w", err)
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return Spec{}, fmt.Errorf("decode agent spec: %w", err)
	}
	return DecodeSpecJSON(asJSON)
}

var validate = validator.New()

// Prepare applies defaults and validates the spec in place.
func (s *Spec) Prepare() error {
	s.Name = strings.TrimSpace(s.Name)
	if err := defaults.Set(s); err != nil {
		return apperr.Wrap(err, "apply agent defaults")
	}
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if apperr.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.NewValidationError(fe.Namespace(), fe.Value(), fmt.Sprintf("failed %q rule", fe.Tag()))
		}
		return apperr.Wrap(err, "validate agent spec")
	}
	return nil
}

// IndicatorNames returns the weighted indicator names in sorted order.
func (s Spec) IndicatorNames() []string {
	names := make([]string, 0, len(s.Weights))
	for name := range s.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
