package indicators

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/models"
	"crypto-swarm/pkg/utils"
)

// Config configures the default source set.
type Config struct {
	CBBIURL    string
	RainbowURL string
	Timeout    time.Duration
	Retry      utils.RetryConfig
	CacheTTL   time.Duration
}

// Fetcher refreshes all sources for a day.
type Fetcher struct {
	sources []Source
	cache   *Cache
	logger  zerolog.Logger
}

// NewFetcher creates a fetcher over the given sources. A nil cache disables
// memoization.
func NewFetcher(sources []Source, cache *Cache, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		sources: sources,
		cache:   cache,
		logger:  logging.WithStage(logger, "refresh"),
	}
}

// NewDefaultFetcher wires the CBBI, Rainbow Bands and Pi Cycle sources.
func NewDefaultFetcher(cfg Config, logger zerolog.Logger) *Fetcher {
	getter := NewHTTPGetter(cfg.Timeout, cfg.Retry, logger)
	cbbiURL := cfg.CBBIURL
	if cbbiURL == "" {
		cbbiURL = DefaultCBBIURL
	}
	rainbowURL := cfg.RainbowURL
	if rainbowURL == "" {
		rainbowURL = DefaultRainbowURL
	}
	sources := []Source{
		&CBBISource{URL: cbbiURL, Getter: getter},
		&RainbowSource{URL: rainbowURL, Getter: getter},
		&PiCycleSource{},
	}
	return NewFetcher(sources, NewCache(cfg.CacheTTL), logger)
}

// Result is one source's outcome.
type Result struct {
	Indicator models.Indicator
	Cached    bool
	Fallback  bool
	Err       error
}

// FetchAll queries every source concurrently and returns results in source
// order. A failing source yields its fallback reading; FetchAll itself only
// fails when ctx is cancelled.
func (f *Fetcher) FetchAll(ctx context.Context, date string) ([]Result, error) {
	results := make([]Result, len(f.sources))

	var wg sync.WaitGroup
	for i, src := range f.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = f.fetchOne(ctx, src, date)
		}(i, src)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.logger.Info().Int("count", len(results)).Str("date", date).Msg("Fetched indicators")
	return results, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, src Source, date string) Result {
	logger := f.logger.With().Str("indicator", src.Name()).Logger()

	if f.cache != nil {
		if ind, ok := f.cache.Get(src.Name(), date); ok {
			logger.Debug().Msg("Using cached indicator")
			return Result{Indicator: ind, Cached: true}
		}
	}

	ind, err := src.Fetch(ctx, date)
	if err != nil {
		logger.Warn().Err(err).Msg("Using fallback indicator value")
		return Result{Indicator: src.Fallback(date), Fallback: true, Err: err}
	}

	if f.cache != nil {
		f.cache.Set(src.Name(), date, ind)
	}
	logger.Info().Float64("value", ind.Value).Str("signal", string(ind.Signal)).Msg("Fetched indicator")
	return Result{Indicator: ind}
}

// Indicators collects results into an indicator set.
func Indicators(results []Result) models.Indicators {
	out := make(models.Indicators, len(results))
	for _, r := range results {
		out[r.Indicator.Name] = r.Indicator
	}
	return out
}
