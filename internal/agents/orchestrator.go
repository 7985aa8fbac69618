package agents

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/models"
)

// DefaultAgentTimeout bounds a whole swarm run.
const DefaultAgentTimeout = 60 * time.Second

// Orchestrator runs a set of agents in parallel over the same indicators.
type Orchestrator struct {
	agents  []Agent
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator. A non-positive timeout uses
// DefaultAgentTimeout.
func NewOrchestrator(agents []Agent, timeout time.Duration, logger zerolog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}
	return &Orchestrator{
		agents:  agents,
		timeout: timeout,
		logger:  logging.WithStage(logger, "agents"),
		now:     time.Now,
	}
}

// SetClock overrides the clock used to stamp votes.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// RunResult holds the successful votes, sorted by agent name, and the
// per-agent failures.
type RunResult struct {
	Votes  []models.Vote
	Errors []error
}

// agentResult holds the result from a single agent.
type agentResult struct {
	name string
	vote *models.Vote
	err  error
}

// Run analyzes indicators with every agent and stamps each vote with date.
// It fails with ErrAllAgentsFailed only when no agent produced a vote.
func (o *Orchestrator) Run(ctx context.Context, indicators models.Indicators, date string) (*RunResult, error) {
	if len(o.agents) == 0 {
		return &RunResult{}, apperr.ErrAgentNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// Channel for results
	resultChan := make(chan agentResult, len(o.agents))

	var wg sync.WaitGroup
	for _, agent := range o.agents {
		wg.Add(1)
		go func(a Agent) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					resultChan <- agentResult{name: a.Name(), err: apperr.NewAgentError(a.Name(), "analyze", panicError{r})}
				}
			}()

			vote, err := a.Analyze(ctx, indicators)
			resultChan <- agentResult{name: a.Name(), vote: vote, err: err}
		}(agent)
	}

	// Close channel when all agents complete
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	out := &RunResult{}
	stamp := o.now().UTC().Format(time.RFC3339)
	for ar := range resultChan {
		if ar.err != nil {
			var agentErr *apperr.AgentError
			if !apperr.As(ar.err, &agentErr) {
				ar.err = apperr.NewAgentError(ar.name, "analyze", ar.err)
			}
			o.logger.Error().Err(ar.err).Str("agent", ar.name).Msg("Agent failed")
			out.Errors = append(out.Errors, ar.err)
			continue
		}
		if ar.vote == nil {
			continue
		}
		vote := *ar.vote
		vote.AgentName = ar.name
		vote.Date = date
		if vote.Timestamp == "" {
			vote.Timestamp = stamp
		}
		out.Votes = append(out.Votes, vote)
	}

	sort.Slice(out.Votes, func(i, j int) bool {
		return out.Votes[i].AgentName < out.Votes[j].AgentName
	})

	o.logger.Info().
		Int("votes", len(out.Votes)).
		Int("failed", len(out.Errors)).
		Msg("Agent run complete")

	if len(out.Votes) == 0 {
		return out, apperr.Join(append([]error{apperr.ErrAllAgentsFailed}, out.Errors...)...)
	}
	return out, nil
}

type panicError struct{ v interface{} }

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.v)
}
