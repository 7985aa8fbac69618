package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/models"
)

func newTestHistory(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history", "swarm.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Property: For any archived consensus, reading it back by date yields the
// same score, action, risk fields and voters.
func TestProperty_ConsensusHistoryRoundTrip(t *testing.T) {
	store := newTestHistory(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("save then get preserves the record", prop.ForAll(
		func(day int, score float64, action string, voters int, flagged bool) bool {
			ctx := context.Background()
			date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day).Format("2006-01-02")

			c := &models.Consensus{
				Date:      date,
				Timestamp: date + "T00:00:00Z",
				Score:     score,
				Action:    action,
				Emoji:     "🟡",
				RiskFlags: []models.RiskFlag{},
			}
			for i := 0; i < voters; i++ {
				c.AgentVotes = append(c.AgentVotes, models.Vote{AgentName: fmt.Sprintf("a%d", i), Score: score, Action: models.Hold})
			}
			if flagged {
				c.RiskOverride = true
				c.OriginalAction = action
				c.Action = "de-risk"
				c.RiskFlags = []models.RiskFlag{{Flag: "cbbi_high", Value: 0.9, Threshold: 0.8}}
			}

			if err := store.SaveConsensus(ctx, c); err != nil {
				t.Logf("Failed to save: %v", err)
				return false
			}
			got, err := store.GetConsensus(ctx, date)
			if err != nil {
				t.Logf("Failed to get: %v", err)
				return false
			}
			return got.Score == c.Score &&
				got.Action == c.Action &&
				got.RiskOverride == c.RiskOverride &&
				len(got.RiskFlags) == len(c.RiskFlags) &&
				len(got.AgentVotes) == voters
		},
		gen.IntRange(0, 60),
		gen.Float64Range(0, 100),
		gen.OneConstOf("buy", "hold", "de-risk"),
		gen.IntRange(1, 6),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestListConsensus(t *testing.T) {
	store := newTestHistory(t)
	ctx := context.Background()

	for i, date := range []string{"2025-01-01", "2025-01-03", "2025-01-02"} {
		c := &models.Consensus{Date: date, Timestamp: date + "T00:00:00Z", Score: float64(40 + i), Action: "hold"}
		if i == 1 {
			c.RiskOverride = true
			c.RiskFlags = []models.RiskFlag{{Flag: "pi_cycle_top", Value: 0.97, Threshold: 0.95}}
		}
		if err := store.SaveConsensus(ctx, c); err != nil {
			t.Fatalf("SaveConsensus() error = %v", err)
		}
	}

	// Re-running a day replaces it
	if err := store.SaveConsensus(ctx, &models.Consensus{Date: "2025-01-01", Timestamp: "x", Score: 70, Action: "buy"}); err != nil {
		t.Fatalf("SaveConsensus() error = %v", err)
	}

	entries, err := store.ListConsensus(ctx, 0)
	if err != nil {
		t.Fatalf("ListConsensus() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("ListConsensus() = %d entries, want 3", len(entries))
	}
	if entries[0].Date != "2025-01-03" || !entries[0].RiskOverride {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[2].Date != "2025-01-01" || entries[2].Action != "buy" {
		t.Errorf("entries[2] = %+v", entries[2])
	}

	limited, err := store.ListConsensus(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("ListConsensus(1) = %v, %v", limited, err)
	}

	counts, err := store.RiskFlagCounts(ctx)
	if err != nil {
		t.Fatalf("RiskFlagCounts() error = %v", err)
	}
	if counts["pi_cycle_top"] != 1 {
		t.Errorf("RiskFlagCounts() = %v", counts)
	}

	if _, err := store.GetConsensus(ctx, "1999-01-01"); !apperr.Is(err, apperr.ErrDataNotFound) {
		t.Errorf("GetConsensus(missing) error = %v", err)
	}
}
