package consensus

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/models"
)

// Aggregator builds a Consensus from a day's votes.
type Aggregator struct {
	table  Table
	logger zerolog.Logger
	now    func() time.Time
}

// NewAggregator creates an aggregator. An empty table selects DefaultTable.
func NewAggregator(table Table, logger zerolog.Logger) *Aggregator {
	if len(table) == 0 {
		table = DefaultTable()
	}
	return &Aggregator{
		table:  table,
		logger: logging.WithStage(logger, "aggregate"),
		now:    time.Now,
	}
}

// SetClock overrides the timestamp source.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// Table returns the threshold table in use.
func (a *Aggregator) Table() Table {
	return a.table
}

// Aggregate reduces votes to a consensus for date. The input slice is not
// modified. Zero votes is the only error.
func (a *Aggregator) Aggregate(votes []models.Vote, date string) (*models.Consensus, error) {
	if len(votes) == 0 {
		return nil, apperr.Wrapf(apperr.ErrNoVotes, "aggregate %s", date)
	}

	score := MeanScore(votes)

	band, ok := a.table.Match(score)
	if !ok {
		a.logger.Warn().
			Float64("score", score).
			Msg("No action band matched consensus score, defaulting to hold")
		band = Band{Action: ActionHold, Emoji: DefaultEmoji}
	}

	dist := Distribute(votes)

	c := &models.Consensus{
		Date:           date,
		Timestamp:      a.now().UTC().Format(time.RFC3339),
		Score:          score,
		Action:         band.Action,
		Emoji:          band.Emoji,
		AgentVotes:     append([]models.Vote(nil), votes...),
		Distribution:   dist.Counts,
		AgreementLevel: dist.Agreement,
		MajorityAction: string(dist.Majority),
		RiskFlags:      []models.RiskFlag{},
	}

	logging.LogConsensus(a.logger, c.Action, c.Score, c.AgreementLevel, len(votes))
	return c, nil
}

// MeanScore is the unweighted mean of vote scores; every voter counts once.
func MeanScore(votes []models.Vote) float64 {
	if len(votes) == 0 {
		return models.NeutralScore
	}
	var total float64
	for _, v := range votes {
		total += v.Score
	}
	return total / float64(len(votes))
}

// Distribution summarizes how voters split across actions.
type Distribution struct {
	Counts    map[string]int
	Agreement float64
	Majority  models.Action
}

// Distribute counts literal vote actions. Agreement is the majority share,
// 1.0 for a single voter. Ties for the majority go to the lexically smallest
// action so the result does not depend on vote order.
func Distribute(votes []models.Vote) Distribution {
	d := Distribution{
		Counts:    make(map[string]int),
		Agreement: 1.0,
		Majority:  models.Hold,
	}
	if len(votes) == 0 {
		return d
	}

	for _, v := range votes {
		action := v.Action
		if action == "" {
			action = models.Hold
		}
		d.Counts[string(action)]++
	}

	actions := make([]string, 0, len(d.Counts))
	for action := range d.Counts {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	best := 0
	for _, action := range actions {
		if n := d.Counts[action]; n > best {
			best = n
			d.Majority = models.Action(action)
		}
	}

	if len(votes) > 1 {
		d.Agreement = float64(best) / float64(len(votes))
	}
	return d
}
