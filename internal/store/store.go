// Package store provides the swarm's file layout and consensus history.
package store

import (
	"context"

	"crypto-swarm/internal/agents"
	"crypto-swarm/internal/models"
)

// DataStore is the per-day working set exchanged between pipeline stages.
type DataStore interface {
	// Indicators
	SaveIndicator(date string, ind models.Indicator) (string, error)
	LoadIndicators(date string) (models.Indicators, error)

	// Agent specs
	SaveAgentSpec(spec agents.Spec) (string, error)
	LoadAgentSpec(name string) (agents.Spec, error)
	LoadAgentSpecs() ([]agents.Spec, error)

	// Agent outputs
	SaveVote(date string, vote models.Vote) (string, error)
	LoadVotes(date string) ([]models.Vote, error)

	// Consensus and briefs
	SaveConsensus(c *models.Consensus) (string, error)
	LoadConsensus(date string) (*models.Consensus, error)
	SaveBrief(date, markdown string) (string, error)
}

// HistoryStore archives final consensus records across days.
type HistoryStore interface {
	SaveConsensus(ctx context.Context, c *models.Consensus) error
	GetConsensus(ctx context.Context, date string) (*models.Consensus, error)
	ListConsensus(ctx context.Context, limit int) ([]HistoryEntry, error)
	Close() error
}

// HistoryEntry is one archived day.
type HistoryEntry struct {
	Date           string  `json:"date"`
	RunID          string  `json:"run_id,omitempty"`
	Score          float64 `json:"score"`
	Action         string  `json:"action"`
	Emoji          string  `json:"emoji"`
	AgreementLevel float64 `json:"agreement_level"`
	RiskOverride   bool    `json:"risk_override"`
	Voters         int     `json:"voters"`
	Timestamp      string  `json:"timestamp"`
}

// Ensure implementations satisfy the interfaces.
var (
	_ DataStore    = (*FileStore)(nil)
	_ HistoryStore = (*SQLiteStore)(nil)
)
