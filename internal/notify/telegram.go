package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	apperr "crypto-swarm/internal/errors"
)

// Telegram message limits.
const (
	TelegramMaxLength = 4096
	TelegramChunkSize = 4000
)

// TelegramOptions configures a Telegram channel.
type TelegramOptions struct {
	Token  string
	ChatID string
	// APIEndpoint is a tgbotapi endpoint format; empty uses tgbotapi.APIEndpoint.
	APIEndpoint string
}

// Telegram posts through the Telegram Bot API. The bot is created on first
// use because creating it calls getMe.
type Telegram struct {
	opts   TelegramOptions
	logger zerolog.Logger

	once   sync.Once
	bot    *tgbotapi.BotAPI
	chatID int64
	err    error
}

// NewTelegram creates a Telegram channel. It is disabled without a token
// and chat ID.
func NewTelegram(opts TelegramOptions, logger zerolog.Logger) *Telegram {
	if opts.APIEndpoint == "" {
		opts.APIEndpoint = tgbotapi.APIEndpoint
	}
	return &Telegram{
		opts:   opts,
		logger: logger.With().Str("channel", "telegram").Logger(),
	}
}

// Name returns the name of the channel.
func (t *Telegram) Name() string { return "telegram" }

// IsEnabled returns whether the channel can post.
func (t *Telegram) IsEnabled() bool {
	return t.opts.Token != "" && t.opts.ChatID != ""
}

func (t *Telegram) connect() error {
	t.once.Do(func() {
		chatID, err := strconv.ParseInt(t.opts.ChatID, 10, 64)
		if err != nil {
			t.err = apperr.NewNotifyError(t.Name(), 0, "", fmt.Errorf("invalid chat ID: %w", err))
			return
		}
		bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.opts.Token, t.opts.APIEndpoint)
		if err != nil {
			t.err = apperr.NewNotifyError(t.Name(), 0, "", fmt.Errorf("failed to create Telegram bot: %w", err))
			return
		}
		t.bot = bot
		t.chatID = chatID
		t.logger.Debug().Str("bot", bot.Self.UserName).Msg("Connected to Telegram")
	})
	return t.err
}

// Send posts m.Body as plain text, split to fit Telegram's limit.
func (t *Telegram) Send(ctx context.Context, m Message) error {
	if !t.IsEnabled() {
		return apperr.NewNotifyError(t.Name(), 0, "", fmt.Errorf("telegram bot token and chat ID are required"))
	}
	if err := t.connect(); err != nil {
		return err
	}

	for _, part := range Split(m.Body, TelegramMaxLength, TelegramChunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return apperr.NewNotifyError(t.Name(), 0, "", err)
		}
	}
	return nil
}
