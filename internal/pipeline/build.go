package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/agents"
	"crypto-swarm/internal/brief"
	"crypto-swarm/internal/config"
	"crypto-swarm/internal/consensus"
	"crypto-swarm/internal/indicators"
	"crypto-swarm/internal/notify"
	"crypto-swarm/internal/risk"
	"crypto-swarm/internal/store"
)

// FromConfig wires a pipeline from cfg. The returned close function
// releases the history database, if one was opened. A history database
// that cannot be opened is logged and skipped.
func FromConfig(cfg *config.Config, logger zerolog.Logger) (*Pipeline, func() error) {
	files := store.NewFileStore(cfg.Data.Dir, logger)

	var history store.HistoryStore
	closer := func() error { return nil }
	if cfg.Data.History {
		db, err := store.NewSQLiteStore(cfg.HistoryPath())
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.HistoryPath()).Msg("Failed to open history store, archiving disabled")
		} else {
			history = db
			closer = db.Close
			logger.Debug().Str("path", cfg.HistoryPath()).Msg("SQLite history store initialized")
		}
	}

	var llm agents.LLMClient
	if cfg.Credentials.OpenAIAPIKey != "" {
		llm = agents.NewOpenAIClient(cfg.Credentials.OpenAIAPIKey, cfg.Agents.Model, cfg.Agents.BaseURL)
		logger.Debug().Str("model", cfg.Agents.Model).Msg("OpenAI LLM client initialized")
	}

	seed := cfg.Indicators.MockSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	table := consensus.LoadTable(cfg.Data.ActionMap, logger)
	aggregator := consensus.NewAggregator(table, logger)

	p := New(Options{
		Store:        files,
		History:      history,
		Fetcher:      indicators.NewDefaultFetcher(cfg.FetcherConfig(), logger),
		Mock:         indicators.NewMockGenerator(seed),
		Registry:     agents.DefaultRegistry(),
		Deps:         agents.Deps{LLM: llm},
		AgentTimeout: cfg.Agents.Timeout,
		Aggregator:   aggregator,
		Risk:         risk.NewEngine(table, logger),
		Renderer:     brief.LoadRenderer(cfg.Brief.Template, cfg.Brief.KeyIndicators, logger),
		Notifier:     notify.FromConfig(cfg, logger),
		Logger:       logger,
	})
	return p, closer
}
