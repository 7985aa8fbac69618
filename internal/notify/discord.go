package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/logging"
	"crypto-swarm/pkg/utils"
)

// Discord message limits.
const (
	DiscordMaxLength = 2000
	DiscordChunkSize = 1990

	DefaultDiscordAPIBase = "https://discord.com/api/v10"
	DefaultUsername       = "Crypto Analyst Swarm"
)

// poster sends JSON bodies with retries. 429 honours Retry-After; other 4xx
// responses are not retried.
type poster struct {
	client *http.Client
	retry  utils.RetryConfig
	logger zerolog.Logger
}

func newPoster(retry utils.RetryConfig, logger zerolog.Logger) poster {
	if retry.MaxAttempts == 0 {
		retry = utils.DefaultRetryConfig()
		retry.Jitter = 250 * time.Millisecond
	}
	return poster{
		client: &http.Client{Timeout: 10 * time.Second},
		retry:  retry,
		logger: logger,
	}
}

func (p poster) post(ctx context.Context, channel, url string, headers map[string]string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", channel, err)
	}

	return utils.Retry(ctx, p.retry, func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return utils.Permanent(fmt.Errorf("creating %s request: %w", channel, err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "CryptoSwarm/1.0")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := p.client.Do(req)
		logging.LogAPICall(p.logger, http.MethodPost, channel, time.Since(start), err)
		if err != nil {
			return apperr.NewNotifyError(channel, 0, "", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		text, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		nerr := apperr.NewNotifyError(channel, resp.StatusCode, strings.TrimSpace(string(text)), nil)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return &utils.RetryAfterError{Delay: retryAfter(resp.Header.Get("Retry-After")), Err: nerr}
		case resp.StatusCode >= 500:
			return nerr
		default:
			return utils.Permanent(nerr)
		}
	})
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// DiscordWebhookOptions configures a webhook channel.
type DiscordWebhookOptions struct {
	URL       string
	Username  string
	AvatarURL string
	Retry     utils.RetryConfig // zero value uses utils.DefaultRetryConfig
}

// DiscordWebhook posts through a Discord webhook URL.
type DiscordWebhook struct {
	opts   DiscordWebhookOptions
	poster poster
	logger zerolog.Logger
}

// NewDiscordWebhook creates a webhook channel. It is disabled without a URL.
func NewDiscordWebhook(opts DiscordWebhookOptions, logger zerolog.Logger) *DiscordWebhook {
	if opts.Username == "" {
		opts.Username = DefaultUsername
	}
	logger = logger.With().Str("channel", "discord_webhook").Logger()
	return &DiscordWebhook{opts: opts, poster: newPoster(opts.Retry, logger), logger: logger}
}

// Name returns the name of the channel.
func (d *DiscordWebhook) Name() string { return "discord_webhook" }

// IsEnabled returns whether the channel can post.
func (d *DiscordWebhook) IsEnabled() bool { return d.opts.URL != "" }

// Send posts m.Body, split into parts when it exceeds the Discord limit.
func (d *DiscordWebhook) Send(ctx context.Context, m Message) error {
	if !d.IsEnabled() {
		return apperr.NewNotifyError(d.Name(), 0, "", fmt.Errorf("webhook URL is required"))
	}

	parts := Split(m.Body, DiscordMaxLength, DiscordChunkSize)
	if len(parts) > 1 {
		d.logger.Warn().Int("parts", len(parts)).Msg("Content exceeds Discord's 2000 character limit, splitting")
	}

	for _, part := range parts {
		payload := map[string]string{
			"content":  part,
			"username": d.opts.Username,
		}
		if d.opts.AvatarURL != "" {
			payload["avatar_url"] = d.opts.AvatarURL
		}
		d.logger.Info().Str("username", d.opts.Username).Msg("Posting to Discord webhook")
		if err := d.poster.post(ctx, d.Name(), d.opts.URL, nil, payload); err != nil {
			return err
		}
	}
	return nil
}

// DiscordBotOptions configures a bot channel.
type DiscordBotOptions struct {
	Token     string
	ChannelID string
	APIBase   string
	Retry     utils.RetryConfig // zero value uses utils.DefaultRetryConfig
}

// DiscordBot posts as a bot user through the Discord REST API.
type DiscordBot struct {
	opts   DiscordBotOptions
	poster poster
	logger zerolog.Logger
}

// NewDiscordBot creates a bot channel. It is disabled without a token and
// channel ID.
func NewDiscordBot(opts DiscordBotOptions, logger zerolog.Logger) *DiscordBot {
	if opts.APIBase == "" {
		opts.APIBase = DefaultDiscordAPIBase
	}
	opts.APIBase = strings.TrimRight(opts.APIBase, "/")
	logger = logger.With().Str("channel", "discord_bot").Logger()
	return &DiscordBot{opts: opts, poster: newPoster(opts.Retry, logger), logger: logger}
}

// Name returns the name of the channel.
func (d *DiscordBot) Name() string { return "discord_bot" }

// IsEnabled returns whether the channel can post.
func (d *DiscordBot) IsEnabled() bool {
	return d.opts.Token != "" && d.opts.ChannelID != ""
}

// Send posts m.Body to the configured channel.
func (d *DiscordBot) Send(ctx context.Context, m Message) error {
	if d.opts.ChannelID == "" {
		return apperr.NewNotifyError(d.Name(), 0, "", fmt.Errorf("discord channel ID is required"))
	}
	if d.opts.Token == "" {
		return apperr.NewNotifyError(d.Name(), 0, "", fmt.Errorf("discord bot token is required"))
	}

	url := fmt.Sprintf("%s/channels/%s/messages", d.opts.APIBase, d.opts.ChannelID)
	headers := map[string]string{"Authorization": "Bot " + d.opts.Token}

	for _, part := range Split(m.Body, DiscordMaxLength, DiscordChunkSize) {
		if err := d.poster.post(ctx, d.Name(), url, headers, map[string]string{"content": part}); err != nil {
			return err
		}
	}
	d.logger.Info().Str("channel_id", d.opts.ChannelID).Msg("Posted message to channel")
	return nil
}
