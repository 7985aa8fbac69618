// Package notify posts the daily brief to chat channels.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/config"
	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/pkg/utils"
)

// Channel defines the interface for a notification channel.
type Channel interface {
	Name() string
	Send(ctx context.Context, m Message) error
	IsEnabled() bool
}

// Message is one post. Channels split long bodies themselves.
type Message struct {
	Title     string
	Body      string
	Date      string
	Timestamp time.Time
}

// Split breaks content that exceeds limit runes into chunk-sized pieces,
// each prefixed "**Part i/n**\n". Content within the limit is returned
// unchanged.
func Split(content string, limit, chunk int) []string {
	if limit <= 0 || len([]rune(content)) <= limit {
		return []string{content}
	}
	pieces := utils.Chunk(content, chunk)
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = fmt.Sprintf("**Part %d/%d**\n%s", i+1, len(pieces), p)
	}
	return out
}

// MultiNotifier sends messages to multiple channels.
type MultiNotifier struct {
	channels []Channel
	logger   zerolog.Logger
	mu       sync.RWMutex
}

// NewMultiNotifier creates a notifier over channels.
func NewMultiNotifier(logger zerolog.Logger, channels ...Channel) *MultiNotifier {
	return &MultiNotifier{
		channels: channels,
		logger:   logger.With().Str("component", "notify").Logger(),
	}
}

// FromConfig builds the channels enabled in cfg.
func FromConfig(cfg *config.Config, logger zerolog.Logger) *MultiNotifier {
	mn := NewMultiNotifier(logger)

	if cfg.Discord.Enabled {
		switch cfg.Discord.Method {
		case config.MethodWebhook:
			mn.AddChannel(NewDiscordWebhook(DiscordWebhookOptions{
				URL:       cfg.Discord.WebhookURL,
				Username:  cfg.Discord.Username,
				AvatarURL: cfg.Discord.AvatarURL,
			}, logger))
		default:
			mn.AddChannel(NewDiscordBot(DiscordBotOptions{
				Token:     cfg.Credentials.DiscordBotToken,
				ChannelID: cfg.Discord.ChannelID,
				APIBase:   cfg.Discord.APIBase,
			}, logger))
		}
	}
	if cfg.Telegram.Enabled {
		mn.AddChannel(NewTelegram(TelegramOptions{
			Token:       cfg.Credentials.TelegramBotToken,
			ChatID:      cfg.Telegram.ChatID,
			APIEndpoint: cfg.Telegram.APIEndpoint,
		}, logger))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// Channels returns the names of the enabled channels.
func (mn *MultiNotifier) Channels() []string {
	mn.mu.RLock()
	defer mn.mu.RUnlock()
	var names []string
	for _, ch := range mn.channels {
		if ch.IsEnabled() {
			names = append(names, ch.Name())
		}
	}
	return names
}

// Send posts m to every enabled channel. It fails with ErrNoChannels when
// none is enabled and joins the per-channel failures otherwise.
func (mn *MultiNotifier) Send(ctx context.Context, m Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []error
	sent := 0
	for _, ch := range channels {
		if !ch.IsEnabled() {
			mn.logger.Debug().Str("channel", ch.Name()).Msg("Channel disabled, skipping")
			continue
		}
		sent++
		if err := ch.Send(ctx, m); err != nil {
			mn.logger.Error().Err(err).Str("channel", ch.Name()).Msg("Failed to post")
			errs = append(errs, err)
			continue
		}
		mn.logger.Info().Str("channel", ch.Name()).Msg("Posted message")
	}

	if sent == 0 {
		return apperr.ErrNoChannels
	}
	return apperr.Join(errs...)
}
