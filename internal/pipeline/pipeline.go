// Package pipeline runs the daily stages: refresh, agents, aggregate, risk,
// brief and post.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crypto-swarm/internal/agents"
	"crypto-swarm/internal/brief"
	"crypto-swarm/internal/consensus"
	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/indicators"
	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/models"
	"crypto-swarm/internal/notify"
	"crypto-swarm/internal/risk"
	"crypto-swarm/internal/store"
)

// DateLayout is the day format used for every stage.
const DateLayout = "2006-01-02"

// Fetcher reads the live indicator set.
type Fetcher interface {
	FetchAll(ctx context.Context, date string) ([]indicators.Result, error)
}

// Notifier posts a brief.
type Notifier interface {
	Send(ctx context.Context, m notify.Message) error
}

// Options wires the pipeline's collaborators. Store is required; History,
// Fetcher and Notifier are optional. Deps.Logger is replaced by Logger.
type Options struct {
	Store        store.DataStore
	History      store.HistoryStore
	Fetcher      Fetcher
	Mock         *indicators.MockGenerator
	Registry     *agents.Registry
	Deps         agents.Deps
	AgentTimeout time.Duration
	Aggregator   *consensus.Aggregator
	Risk         *risk.Engine
	Renderer     *brief.Renderer
	Notifier     Notifier
	Logger       zerolog.Logger
}

// Pipeline coordinates the stages over a DataStore.
type Pipeline struct {
	store        store.DataStore
	history      store.HistoryStore
	fetcher      Fetcher
	mock         *indicators.MockGenerator
	registry     *agents.Registry
	deps         agents.Deps
	agentTimeout time.Duration
	aggregator   *consensus.Aggregator
	risk         *risk.Engine
	renderer     *brief.Renderer
	notifier     Notifier
	logger       zerolog.Logger
	now          func() time.Time
	newRunID     func() string
}

// New creates a pipeline. Missing collaborators other than Store get
// defaults: the default registry, the default threshold table and the
// built-in brief template.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		store:        opts.Store,
		history:      opts.History,
		fetcher:      opts.Fetcher,
		mock:         opts.Mock,
		registry:     opts.Registry,
		deps:         opts.Deps,
		agentTimeout: opts.AgentTimeout,
		aggregator:   opts.Aggregator,
		risk:         opts.Risk,
		renderer:     opts.Renderer,
		notifier:     opts.Notifier,
		logger:       opts.Logger,
		now:          time.Now,
		newRunID:     uuid.NewString,
	}
	if p.registry == nil {
		p.registry = agents.DefaultRegistry()
	}
	if p.mock == nil {
		p.mock = indicators.NewMockGenerator(time.Now().UnixNano())
	}
	if p.aggregator == nil {
		p.aggregator = consensus.NewAggregator(consensus.DefaultTable(), p.logger)
	}
	if p.risk == nil {
		p.risk = risk.NewEngine(p.aggregator.Table(), p.logger)
	}
	if p.renderer == nil {
		p.renderer, _ = brief.NewRenderer("", nil)
	}
	p.deps.Logger = p.logger
	return p
}

// SetClock overrides the time source of every stage.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
	p.aggregator.SetClock(now)
	p.renderer.SetClock(now)
}

// Reseed replaces the mock generator with one seeded from seed.
func (p *Pipeline) Reseed(seed int64) {
	p.mock = indicators.NewMockGenerator(seed)
}

// SetNotifier replaces the notifier used by Post and Daily.
func (p *Pipeline) SetNotifier(n Notifier) {
	p.notifier = n
}

// Today returns the current UTC date.
func (p *Pipeline) Today() string {
	return p.now().UTC().Format(DateLayout)
}

// ResolveDate returns date, or today when it is empty. Other values must
// be YYYY-MM-DD.
func (p *Pipeline) ResolveDate(date string) (string, error) {
	if date == "" {
		return p.Today(), nil
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return "", apperr.NewValidationError("date", date, "must be YYYY-MM-DD")
	}
	return date, nil
}

// RefreshResult is the outcome of a refresh or mock stage.
type RefreshResult struct {
	Date       string            `json:"date"`
	Indicators models.Indicators `json:"indicators"`
	Paths      []string          `json:"paths,omitempty"`
	Fallbacks  []string          `json:"fallbacks,omitempty"`
}

// Refresh fetches live indicators and saves them unless dryRun is set.
// Failing sources contribute their fallback values.
func (p *Pipeline) Refresh(ctx context.Context, date string, dryRun bool) (*RefreshResult, error) {
	if p.fetcher == nil {
		return nil, fmt.Errorf("no indicator fetcher configured")
	}
	logger := p.stageLogger(ctx, "refresh", date)

	results, err := p.fetcher.FetchAll(ctx, date)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to fetch indicators")
	}

	out := &RefreshResult{Date: date, Indicators: indicators.Indicators(results)}
	for _, r := range results {
		if r.Fallback {
			out.Fallbacks = append(out.Fallbacks, r.Indicator.Name)
		}
	}
	if dryRun {
		logger.Info().Int("count", len(results)).Msg("Dry run, indicators not saved")
		return out, nil
	}

	for _, r := range results {
		path, err := p.store.SaveIndicator(date, r.Indicator)
		if err != nil {
			return nil, err
		}
		out.Paths = append(out.Paths, path)
	}
	logger.Info().Int("count", len(out.Paths)).Msg("Saved indicators")
	return out, nil
}

// Mock generates and saves synthetic indicators for date.
func (p *Pipeline) Mock(date string) (*RefreshResult, error) {
	generated := p.mock.Generate(date)
	out := &RefreshResult{Date: date, Indicators: make(models.Indicators, len(generated))}
	for _, ind := range generated {
		path, err := p.store.SaveIndicator(date, ind)
		if err != nil {
			return nil, err
		}
		out.Indicators[ind.Name] = ind
		out.Paths = append(out.Paths, path)
	}
	mockLogger := logging.WithStage(p.logger, "mock")
	mockLogger.Info().Str("date", date).Int("count", len(generated)).Msg("Generated mock indicators")
	return out, nil
}

// AgentsResult is the outcome of running one or more agents.
type AgentsResult struct {
	Date   string            `json:"date"`
	Votes  []models.Vote     `json:"votes"`
	Paths  map[string]string `json:"paths"`
	Errors []string          `json:"errors,omitempty"`
}

// RunAgent runs the named agent on date's indicators and saves its vote.
// With dryRun the agent sees mock indicators and nothing is saved.
func (p *Pipeline) RunAgent(ctx context.Context, name, date string, dryRun bool) (*models.Vote, string, error) {
	spec, err := p.store.LoadAgentSpec(name)
	if err != nil {
		return nil, "", err
	}

	var inds models.Indicators
	if dryRun {
		inds = make(models.Indicators)
		for _, ind := range p.mock.Generate(date) {
			inds[ind.Name] = ind
		}
	} else if inds, err = p.store.LoadIndicators(date); err != nil {
		return nil, "", err
	}

	res, err := p.runSpecs(ctx, []agents.Spec{spec}, inds, date, !dryRun)
	if err != nil {
		return nil, "", err
	}
	vote := res.Votes[0]
	return &vote, res.Paths[vote.AgentName], nil
}

// RunAgents runs every stored agent concurrently and saves each vote.
// Agents that fail to build or analyze are reported in Errors; the stage
// fails only when no agent produced a vote.
func (p *Pipeline) RunAgents(ctx context.Context, date string) (*AgentsResult, error) {
	specs, err := p.store.LoadAgentSpecs()
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, apperr.Wrap(apperr.ErrAgentNotFound, "no agent specs stored")
	}
	inds, err := p.store.LoadIndicators(date)
	if err != nil {
		return nil, err
	}
	return p.runSpecs(ctx, specs, inds, date, true)
}

func (p *Pipeline) runSpecs(ctx context.Context, specs []agents.Spec, inds models.Indicators, date string, save bool) (*AgentsResult, error) {
	logger := p.stageLogger(ctx, "agents", date)

	out := &AgentsResult{Date: date, Paths: make(map[string]string)}
	built := make([]agents.Agent, 0, len(specs))
	var buildErrs []error
	for _, spec := range specs {
		agent, err := p.registry.Build(spec, p.deps)
		if err != nil {
			logger.Error().Err(err).Str("agent", spec.Name).Msg("Failed to build agent")
			buildErrs = append(buildErrs, err)
			out.Errors = append(out.Errors, err.Error())
			continue
		}
		built = append(built, agent)
	}
	if len(built) == 0 {
		return nil, apperr.Join(append([]error{apperr.ErrAllAgentsFailed}, buildErrs...)...)
	}

	orch := agents.NewOrchestrator(built, p.agentTimeout, p.logger)
	orch.SetClock(p.now)
	res, err := orch.Run(ctx, inds, date)
	if err != nil {
		return nil, apperr.Join(append([]error{err}, buildErrs...)...)
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}

	for _, vote := range res.Votes {
		if !save {
			continue
		}
		path, err := p.store.SaveVote(date, vote)
		if err != nil {
			return nil, err
		}
		out.Paths[vote.AgentName] = path
	}
	out.Votes = res.Votes
	logger.Info().Int("votes", len(res.Votes)).Int("errors", len(out.Errors)).Msg("Agents finished")
	return out, nil
}

// Aggregate combines date's saved votes into a consensus and saves it.
// The consensus carries runID, or a fresh one when empty.
func (p *Pipeline) Aggregate(date, runID string) (*models.Consensus, string, error) {
	votes, err := p.store.LoadVotes(date)
	if err != nil {
		return nil, "", err
	}
	c, err := p.aggregator.Aggregate(votes, date)
	if err != nil {
		return nil, "", err
	}
	if runID == "" {
		runID = p.newRunID()
	}
	c.RunID = runID

	path, err := p.store.SaveConsensus(c)
	if err != nil {
		return nil, "", err
	}
	return c, path, nil
}

// ApplyRisk applies the hard risk thresholds to date's consensus and saves
// the amended record in place.
func (p *Pipeline) ApplyRisk(date string) (*models.Consensus, string, error) {
	c, err := p.store.LoadConsensus(date)
	if err != nil {
		return nil, "", err
	}
	inds, err := p.store.LoadIndicators(date)
	if err != nil {
		return nil, "", err
	}

	out := p.risk.Apply(c, inds)
	path, err := p.store.SaveConsensus(out)
	if err != nil {
		return nil, "", err
	}
	return out, path, nil
}

// BriefResult is a rendered brief.
type BriefResult struct {
	Date     string `json:"date"`
	Markdown string `json:"markdown"`
	Path     string `json:"path"`
}

// Brief renders date's brief from the saved consensus and indicators.
func (p *Pipeline) Brief(date string) (*BriefResult, error) {
	c, err := p.store.LoadConsensus(date)
	if err != nil {
		return nil, err
	}
	inds, err := p.store.LoadIndicators(date)
	if err != nil {
		briefLogger := logging.WithStage(p.logger, "brief")
		briefLogger.Warn().Err(err).Msg("Rendering brief without indicators")
		inds = models.Indicators{}
	}

	md, err := p.renderer.Render(brief.Input{Date: date, Consensus: c, Indicators: inds})
	if err != nil {
		return nil, apperr.Wrap(err, "failed to render brief")
	}
	path, err := p.store.SaveBrief(date, md)
	if err != nil {
		return nil, err
	}
	return &BriefResult{Date: date, Markdown: md, Path: path}, nil
}

// Post sends markdown through the configured notifier.
func (p *Pipeline) Post(ctx context.Context, date, markdown string) error {
	if p.notifier == nil {
		return apperr.ErrNoChannels
	}
	return p.notifier.Send(ctx, notify.Message{
		Title:     "Crypto Market Pulse",
		Body:      markdown,
		Date:      date,
		Timestamp: p.now(),
	})
}

// DailyOptions selects how Daily sources indicators and whether it posts.
type DailyOptions struct {
	Date string
	// UseMock generates synthetic indicators instead of fetching.
	UseMock bool
	// SkipPost renders the brief without sending it.
	SkipPost bool
}

// DailyResult summarizes a full run.
type DailyResult struct {
	RunID     string            `json:"run_id"`
	Date      string            `json:"date"`
	Consensus *models.Consensus `json:"consensus"`
	Brief     *BriefResult      `json:"brief"`
	Errors    []string          `json:"agent_errors,omitempty"`
	Posted    bool              `json:"posted"`
	Archived  bool              `json:"archived"`
}

// stageLogger prefers the run logger that Daily puts in ctx.
func (p *Pipeline) stageLogger(ctx context.Context, stage, date string) zerolog.Logger {
	base := p.logger
	if logging.RunIDFromContext(ctx) != "" {
		base = logging.FromContext(ctx)
	}
	return logging.WithDate(logging.WithStage(base, stage), date)
}

// Daily runs every stage for one date under a single run ID.
func (p *Pipeline) Daily(ctx context.Context, opts DailyOptions) (*DailyResult, error) {
	date, err := p.ResolveDate(opts.Date)
	if err != nil {
		return nil, err
	}
	runID := p.newRunID()
	runLogger := p.logger.With().Str("run_id", runID).Logger()
	ctx = logging.WithLogger(logging.WithRunID(ctx, runID), runLogger)
	logger := logging.WithDate(runLogger, date)
	logger.Info().Bool("mock", opts.UseMock).Msg("Starting daily run")

	if opts.UseMock {
		if _, err := p.Mock(date); err != nil {
			return nil, err
		}
	} else if _, err := p.Refresh(ctx, date, false); err != nil {
		return nil, err
	}

	agentsRes, err := p.RunAgents(ctx, date)
	if err != nil {
		return nil, err
	}
	if _, _, err := p.Aggregate(date, runID); err != nil {
		return nil, err
	}
	final, _, err := p.ApplyRisk(date)
	if err != nil {
		return nil, err
	}
	b, err := p.Brief(date)
	if err != nil {
		return nil, err
	}

	out := &DailyResult{RunID: runID, Date: date, Consensus: final, Brief: b, Errors: agentsRes.Errors}

	if p.history != nil {
		if err := p.history.SaveConsensus(ctx, final); err != nil {
			logger.Error().Err(err).Msg("Failed to archive consensus")
		} else {
			out.Archived = true
		}
	}

	if !opts.SkipPost {
		if err := p.Post(ctx, date, b.Markdown); err != nil {
			return out, apperr.Wrap(err, "failed to post brief")
		}
		out.Posted = true
	}

	logger.Info().Str("action", final.Action).Float64("score", final.Score).Msg("Daily run complete")
	return out, nil
}
