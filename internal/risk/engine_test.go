package risk

import (
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"crypto-swarm/internal/consensus"
	"crypto-swarm/internal/models"
)

func baseConsensus(action string) *models.Consensus {
	return &models.Consensus{
		Date:   "2025-01-02",
		Score:  65,
		Action: action,
		Emoji:  "🟢",
		AgentVotes: []models.Vote{
			{AgentName: "Macro", Score: 65, Action: models.Buy},
		},
		Distribution:   map[string]int{"BUY": 1},
		AgreementLevel: 1,
		MajorityAction: "BUY",
		RiskFlags:      []models.RiskFlag{},
	}
}

func indicators(cbbi, rainbow, pi float64) models.Indicators {
	return models.Indicators{
		"CBBI":          {Name: "CBBI", Value: cbbi},
		"Rainbow Bands": {Name: "Rainbow Bands", Value: rainbow},
		"Pi Cycle":      {Name: "Pi Cycle", Value: pi},
	}
}

func TestApplyCBBIOverride(t *testing.T) {
	engine := NewEngine(nil, zerolog.Nop())
	in := baseConsensus("buy")

	out := engine.Apply(in, indicators(0.85, 4, 0.6))

	if out.Action != consensus.ActionDeRisk || out.OriginalAction != "buy" || !out.RiskOverride {
		t.Fatalf("unexpected override: action=%s original=%s override=%v", out.Action, out.OriginalAction, out.RiskOverride)
	}
	if out.Emoji != "🔴" {
		t.Errorf("emoji = %s, want 🔴", out.Emoji)
	}
	if len(out.RiskFlags) != 1 || out.RiskFlags[0].Flag != "cbbi_high" {
		t.Fatalf("flags = %+v", out.RiskFlags)
	}
	if out.RiskFlags[0].Description != "CBBI value of 0.85 indicates extreme market euphoria" {
		t.Errorf("description = %q", out.RiskFlags[0].Description)
	}
	if in.Action != "buy" || in.RiskOverride {
		t.Error("Apply mutated its input")
	}
	if !reflect.DeepEqual(out.AgentVotes, in.AgentVotes) || !reflect.DeepEqual(out.Distribution, in.Distribution) {
		t.Error("votes and distribution must pass through unchanged")
	}
}

func TestApplyNoRisk(t *testing.T) {
	engine := NewEngine(consensus.DefaultTable(), zerolog.Nop())
	out := engine.Apply(baseConsensus("buy"), indicators(0.5, 4, 0.6))

	if out.RiskOverride || len(out.RiskFlags) != 0 || out.Action != "buy" || out.OriginalAction != "" {
		t.Fatalf("no-risk consensus changed: %+v", out)
	}
}

func TestApplyAllChecksInRegistrationOrder(t *testing.T) {
	engine := NewEngine(nil, zerolog.Nop())
	out := engine.Apply(baseConsensus("hold"), indicators(0.9, 8, 0.97))

	want := []string{"cbbi_high", "rainbow_top", "pi_cycle_top"}
	if len(out.RiskFlags) != len(want) {
		t.Fatalf("flags = %+v", out.RiskFlags)
	}
	for i, f := range out.RiskFlags {
		if f.Flag != want[i] {
			t.Errorf("flag %d = %s, want %s", i, f.Flag, want[i])
		}
	}
	if out.RiskFlags[1].Description != "BTC price is in band 8 of the Rainbow Chart, indicating potential top" {
		t.Errorf("rainbow description = %q", out.RiskFlags[1].Description)
	}
}

func TestIndicatorNamesMatchedByKey(t *testing.T) {
	engine := NewEngine(nil, zerolog.Nop())
	for _, name := range []string{"CBBI", "cbbi", "Cbbi"} {
		inds := models.Indicators{name: {Name: name, Value: 0.81}}
		if flags := engine.Flags(inds); len(flags) != 1 {
			t.Errorf("indicator %q did not trigger cbbi_high", name)
		}
	}
	inds := models.Indicators{"rainbow_bands": {Value: 7}, "PI CYCLE": {Value: 0.95}}
	if flags := engine.Flags(inds); len(flags) != 2 {
		t.Errorf("thresholds are inclusive, got %+v", flags)
	}
}

func TestDeRiskEmojiFromTable(t *testing.T) {
	table := consensus.Table{{Action: consensus.ActionDeRisk, Emoji: "🛑"}}
	out := NewEngine(table, zerolog.Nop()).Apply(baseConsensus("buy"), indicators(0.9, 1, 0.1))
	if out.Emoji != "🛑" {
		t.Errorf("emoji = %s, want table emoji", out.Emoji)
	}
}

func TestApplyRestoresWhenFlagsClear(t *testing.T) {
	engine := NewEngine(nil, zerolog.Nop())
	overridden := engine.Apply(baseConsensus("buy"), indicators(0.9, 1, 0.1))

	restored := engine.Apply(overridden, indicators(0.5, 1, 0.1))
	if restored.Action != "buy" || restored.Emoji != "🟢" || restored.RiskOverride || restored.OriginalAction != "" {
		t.Fatalf("restore failed: %+v", restored)
	}
}

// Property: Applying the engine to its own output with the same indicators
// yields an identical consensus.
func TestProperty_ApplyIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	engine := NewEngine(nil, zerolog.Nop())

	properties.Property("Apply is idempotent", prop.ForAll(
		func(cbbi, rainbow, pi float64, action string) bool {
			inds := indicators(cbbi, rainbow, pi)
			once := engine.Apply(baseConsensus(action), inds)
			twice := engine.Apply(once, inds)
			return reflect.DeepEqual(once, twice)
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(1, 9),
		gen.Float64Range(0.3, 1),
		gen.OneConstOf("buy", "hold", "de-risk"),
	))

	properties.TestingRun(t)
}
