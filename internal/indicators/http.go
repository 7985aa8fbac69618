package indicators

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/logging"
	"crypto-swarm/pkg/utils"
)

const maxBodyBytes = 8 << 20

// HTTPGetter performs GET requests with exponential backoff. A 429 response
// waits for the server's Retry-After delay when one is given.
type HTTPGetter struct {
	client *http.Client
	retry  utils.RetryConfig
	logger zerolog.Logger
}

// NewHTTPGetter creates a getter with the given timeout and retry policy.
func NewHTTPGetter(timeout time.Duration, retry utils.RetryConfig, logger zerolog.Logger) *HTTPGetter {
	return &HTTPGetter{
		client: &http.Client{Timeout: timeout},
		retry:  retry,
		logger: logger,
	}
}

// Response is a successful fetch.
type Response struct {
	Body        []byte
	ContentType string
}

// Get fetches url, retrying on transport errors and non-200 statuses.
func (g *HTTPGetter) Get(ctx context.Context, url string) (Response, error) {
	attempt := 0
	return utils.RetryWithResult(ctx, g.retry, func() (Response, error) {
		attempt++
		start := time.Now()
		resp, err := g.do(ctx, url)
		logging.LogAPICall(g.logger, http.MethodGet, url, time.Since(start), err)
		if err != nil {
			g.logger.Warn().Err(err).Str("url", url).Int("attempt", attempt).Msg("Fetch failed")
		}
		return resp, err
	})
}

func (g *HTTPGetter) do(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, utils.Permanent(err)
	}
	req.Header.Set("Accept", "application/json, text/csv, */*")
	req.Header.Set("User-Agent", "crypto-swarm")

	resp, err := g.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return Response{Body: body, ContentType: resp.Header.Get("Content-Type")}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return Response{}, &utils.RetryAfterError{
			Delay: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:   apperr.Wrapf(apperr.ErrRateLimited, "GET %s", url),
		}
	default:
		return Response{}, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
}

// parseRetryAfter understands the delay-seconds form. Zero means "use the
// computed backoff".
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
