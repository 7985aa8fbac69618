package brief

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/models"
)

func sampleInput() Input {
	c := &models.Consensus{
		Date:           "2025-03-01",
		Score:          62.345,
		Action:         "de-risk",
		Emoji:          "🔴",
		AgreementLevel: 1.0 / 3.0,
		RiskOverride:   true,
		OriginalAction: "buy",
		RiskFlags: []models.RiskFlag{
			{Flag: "cbbi_high", Value: 0.912, Threshold: 0.8, Name: "CBBI High", Description: "CBBI at 0.91 exceeds 0.80", Emoji: "🔴"},
		},
		AgentVotes: []models.Vote{
			{AgentName: "Bull", Score: 80, Action: models.StrongBuy, Confidence: 0.85, Rationale: "up only",
				WeightedSignals: map[string]models.WeightedSignal{
					"Rainbow Bands": {BaseScore: 75, Weight: 0.6, WeightedScore: 45},
					"CBBI":          {BaseScore: 25, Weight: 0.4, WeightedScore: 10},
				}},
			{AgentName: "Bear", Score: 30, Action: models.Sell, Confidence: 0.6, Rationale: "top is in"},
		},
	}
	return Input{
		Date:      "2025-03-01",
		Consensus: c,
		Indicators: models.Indicators{
			"CBBI":          {Name: "CBBI", Value: 0.912, Signal: models.SignalBearish},
			"rainbow_bands": {Name: "rainbow_bands", Value: 6, Signal: "custom"},
		},
	}
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("", nil)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	r.SetClock(func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) })
	return r
}

func TestRenderDefaultTemplate(t *testing.T) {
	out, err := newTestRenderer(t).Render(sampleInput())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		"# Crypto Market Brief - 2025-03-01",
		"## Consensus View 🔴",
		"**Score:** 62.3/100",
		"**Action:** DE-RISK",
		`Original action "BUY" overridden to "DE-RISK"`,
		"(33% agreement)",
		"- 🔴 **CBBI High**: CBBI at 0.91 exceeds 0.80 (value: 0.91)",
		"- **CBBI:** 0.91 (signal: bearish)",
		"- **Rainbow Bands:** 6.00 (signal: neutral)",
		"### Bull\n- **Score:** 80.0/100",
		"- **Confidence:** 85.0%",
		"### Bull - Signal Weights\n- **CBBI**: Base score 25 × Weight 0.4 = 10.0",
		"*Generated by the Crypto Analyst Agent Swarm on 2025-03-01T08:00:00Z*",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("brief missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "Pi Cycle") {
		t.Errorf("brief lists an indicator that is not available")
	}
	if strings.Contains(out, "### Bear - Signal Weights") {
		t.Errorf("brief lists signals for an agent without weights")
	}
}

func TestRenderCalmDay(t *testing.T) {
	in := sampleInput()
	in.Consensus.RiskOverride = false
	in.Consensus.RiskFlags = []models.RiskFlag{}
	in.Consensus.AgreementLevel = 0.8
	in.Consensus.Action = "buy"

	out, err := newTestRenderer(t).Render(in)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(out, "RISK OVERRIDE") || strings.Contains(out, "disagreement") {
		t.Errorf("unexpected warnings:\n%s", out)
	}
	if !strings.Contains(out, "No critical risk flags detected.") {
		t.Errorf("missing calm risk section:\n%s", out)
	}
}

func TestRenderRequiresConsensus(t *testing.T) {
	if _, err := newTestRenderer(t).Render(Input{Date: "2025-03-01"}); err == nil {
		t.Error("Render() error = nil, want error")
	}
}

func TestLoadRendererFallback(t *testing.T) {
	dir := t.TempDir()

	custom := filepath.Join(dir, "brief.tmpl")
	if err := os.WriteFile(custom, []byte("{{.Date}} {{upper .Consensus.Action}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := LoadRenderer(custom, nil, zerolog.Nop()).Render(sampleInput())
	if err != nil || out != "2025-03-01 DE-RISK" {
		t.Errorf("custom Render() = %q, %v", out, err)
	}

	broken := filepath.Join(dir, "broken.tmpl")
	if err := os.WriteFile(broken, []byte("{{.Date"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = LoadRenderer(broken, nil, zerolog.Nop()).Render(sampleInput())
	if err != nil || !strings.HasPrefix(out, "# Crypto Market Brief") {
		t.Errorf("fallback Render() = %q, %v", out, err)
	}

	out, err = LoadRenderer(filepath.Join(dir, "missing.tmpl"), nil, zerolog.Nop()).Render(sampleInput())
	if err != nil || !strings.HasPrefix(out, "# Crypto Market Brief") {
		t.Errorf("missing file Render() = %q, %v", out, err)
	}
}
