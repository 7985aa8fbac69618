package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-swarm/internal/config"
	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/pkg/utils"
)

var fastRetry = utils.RetryConfig{
	MaxAttempts:   3,
	InitialDelay:  time.Millisecond,
	MaxDelay:      5 * time.Millisecond,
	BackoffFactor: 2,
}

func TestSplit(t *testing.T) {
	if got := Split("short", DiscordMaxLength, DiscordChunkSize); len(got) != 1 || got[0] != "short" {
		t.Errorf("Split(short) = %v", got)
	}

	exact := strings.Repeat("a", DiscordMaxLength)
	if got := Split(exact, DiscordMaxLength, DiscordChunkSize); len(got) != 1 {
		t.Errorf("Split(2000) = %d parts, want 1", len(got))
	}

	long := strings.Repeat("b", 4000)
	got := Split(long, DiscordMaxLength, DiscordChunkSize)
	if len(got) != 3 {
		t.Fatalf("Split(4000) = %d parts, want 3", len(got))
	}
	if !strings.HasPrefix(got[0], "**Part 1/3**\n") || !strings.HasPrefix(got[2], "**Part 3/3**\n") {
		t.Errorf("prefixes = %q / %q", got[0][:14], got[2][:14])
	}
	if n := len(strings.TrimPrefix(got[0], "**Part 1/3**\n")); n != DiscordChunkSize {
		t.Errorf("first chunk = %d chars, want %d", n, DiscordChunkSize)
	}
	if n := len(strings.TrimPrefix(got[2], "**Part 3/3**\n")); n != 20 {
		t.Errorf("last chunk = %d chars, want 20", n)
	}
}

type recorded struct {
	mu       sync.Mutex
	paths    []string
	auth     []string
	payloads []map[string]string
}

func (r *recorded) handler(statuses ...int) http.HandlerFunc {
	call := 0
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		defer r.mu.Unlock()
		body, _ := io.ReadAll(req.Body)
		var p map[string]string
		_ = json.Unmarshal(body, &p)
		r.paths = append(r.paths, req.URL.Path)
		r.auth = append(r.auth, req.Header.Get("Authorization"))
		r.payloads = append(r.payloads, p)

		status := http.StatusNoContent
		if call < len(statuses) {
			status = statuses[call]
		}
		call++
		if status == http.StatusTooManyRequests {
			w.Header().Set("Retry-After", "0.001")
		}
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = io.WriteString(w, `{"message": "nope"}`)
		}
	}
}

func TestDiscordWebhookSend(t *testing.T) {
	rec := &recorded{}
	server := httptest.NewServer(rec.handler())
	defer server.Close()

	hook := NewDiscordWebhook(DiscordWebhookOptions{URL: server.URL + "/api/webhooks/1/x", AvatarURL: "https://img.test/a.png", Retry: fastRetry}, zerolog.Nop())
	if err := hook.Send(context.Background(), Message{Body: strings.Repeat("x", 2500)}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(rec.payloads) != 2 {
		t.Fatalf("posted %d messages, want 2", len(rec.payloads))
	}
	p := rec.payloads[0]
	if p["username"] != DefaultUsername || p["avatar_url"] != "https://img.test/a.png" {
		t.Errorf("payload = %v", p)
	}
	if !strings.HasPrefix(p["content"], "**Part 1/2**\n") {
		t.Errorf("content = %q", p["content"][:20])
	}
}

func TestDiscordWebhookErrors(t *testing.T) {
	t.Run("client error is not retried", func(t *testing.T) {
		rec := &recorded{}
		server := httptest.NewServer(rec.handler(http.StatusBadRequest))
		defer server.Close()

		hook := NewDiscordWebhook(DiscordWebhookOptions{URL: server.URL, Retry: fastRetry}, zerolog.Nop())
		err := hook.Send(context.Background(), Message{Body: "hi"})
		var nerr *apperr.NotifyError
		if !apperr.As(err, &nerr) || nerr.Status != http.StatusBadRequest {
			t.Fatalf("Send() error = %v, want NotifyError 400", err)
		}
		if !apperr.Is(err, apperr.ErrNotifyFailed) {
			t.Errorf("Send() error does not match ErrNotifyFailed")
		}
		if len(rec.paths) != 1 {
			t.Errorf("attempts = %d, want 1", len(rec.paths))
		}
	})

	t.Run("rate limit and server errors are retried", func(t *testing.T) {
		rec := &recorded{}
		server := httptest.NewServer(rec.handler(http.StatusTooManyRequests, http.StatusBadGateway, http.StatusNoContent))
		defer server.Close()

		hook := NewDiscordWebhook(DiscordWebhookOptions{URL: server.URL, Retry: fastRetry}, zerolog.Nop())
		if err := hook.Send(context.Background(), Message{Body: "hi"}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if len(rec.paths) != 3 {
			t.Errorf("attempts = %d, want 3", len(rec.paths))
		}
	})

	t.Run("missing url", func(t *testing.T) {
		hook := NewDiscordWebhook(DiscordWebhookOptions{}, zerolog.Nop())
		if hook.IsEnabled() {
			t.Error("IsEnabled() = true without URL")
		}
		if err := hook.Send(context.Background(), Message{Body: "hi"}); err == nil {
			t.Error("Send() error = nil, want error")
		}
	})
}

func TestDiscordBotSend(t *testing.T) {
	rec := &recorded{}
	server := httptest.NewServer(rec.handler(http.StatusOK))
	defer server.Close()

	bot := NewDiscordBot(DiscordBotOptions{Token: "tok", ChannelID: "987", APIBase: server.URL + "/api/v10/", Retry: fastRetry}, zerolog.Nop())
	if !bot.IsEnabled() {
		t.Fatal("IsEnabled() = false")
	}
	if err := bot.Send(context.Background(), Message{Body: "gm"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if rec.paths[0] != "/api/v10/channels/987/messages" {
		t.Errorf("path = %q", rec.paths[0])
	}
	if rec.auth[0] != "Bot tok" {
		t.Errorf("Authorization = %q", rec.auth[0])
	}
	if rec.payloads[0]["content"] != "gm" {
		t.Errorf("payload = %v", rec.payloads[0])
	}

	if NewDiscordBot(DiscordBotOptions{Token: "tok"}, zerolog.Nop()).IsEnabled() {
		t.Error("bot without channel ID is enabled")
	}
}

func TestTelegramSend(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	var chats []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Swarm","username":"swarm_bot"}}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			mu.Lock()
			texts = append(texts, r.FormValue("text"))
			chats = append(chats, r.FormValue("chat_id"))
			mu.Unlock()
			_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":1,"chat":{"id":42,"type":"private"}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	tg := NewTelegram(TelegramOptions{Token: "123:abc", ChatID: "42", APIEndpoint: server.URL + "/bot%s/%s"}, zerolog.Nop())
	if err := tg.Send(context.Background(), Message{Body: strings.Repeat("y", 5000)}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(texts) != 2 || chats[0] != "42" {
		t.Fatalf("sent %d messages to %v", len(texts), chats)
	}
	if !strings.HasPrefix(texts[1], "**Part 2/2**\n") {
		t.Errorf("second part = %q", texts[1][:14])
	}

	bad := NewTelegram(TelegramOptions{Token: "123:abc", ChatID: "not-a-number", APIEndpoint: server.URL + "/bot%s/%s"}, zerolog.Nop())
	if err := bad.Send(context.Background(), Message{Body: "x"}); err == nil {
		t.Error("Send() with invalid chat ID error = nil")
	}
}

type fakeChannel struct {
	name    string
	enabled bool
	err     error
	got     []Message
}

func (f *fakeChannel) Name() string    { return f.name }
func (f *fakeChannel) IsEnabled() bool { return f.enabled }
func (f *fakeChannel) Send(_ context.Context, m Message) error {
	f.got = append(f.got, m)
	return f.err
}

func TestMultiNotifier(t *testing.T) {
	ok := &fakeChannel{name: "ok", enabled: true}
	off := &fakeChannel{name: "off"}
	failing := &fakeChannel{name: "failing", enabled: true, err: errors.New("down")}

	mn := NewMultiNotifier(zerolog.Nop(), ok, off)
	if err := mn.Send(context.Background(), Message{Body: "hello"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(ok.got) != 1 || len(off.got) != 0 {
		t.Errorf("deliveries = %d/%d", len(ok.got), len(off.got))
	}
	if ok.got[0].Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	mn.AddChannel(failing)
	if got := strings.Join(mn.Channels(), ","); got != "ok,failing" {
		t.Errorf("Channels() = %q", got)
	}
	if err := mn.Send(context.Background(), Message{Body: "hello"}); err == nil || !strings.Contains(err.Error(), "down") {
		t.Errorf("Send() error = %v, want failing channel error", err)
	}
	if len(ok.got) != 2 {
		t.Error("healthy channel skipped after a failure")
	}

	if err := NewMultiNotifier(zerolog.Nop(), off).Send(context.Background(), Message{}); !apperr.Is(err, apperr.ErrNoChannels) {
		t.Errorf("Send() error = %v, want ErrNoChannels", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Discord.ChannelID = "1"
	cfg.Credentials.DiscordBotToken = "t"
	cfg.Telegram.Enabled = true
	cfg.Telegram.ChatID = "2"
	cfg.Credentials.TelegramBotToken = "3:x"

	if got := strings.Join(FromConfig(cfg, zerolog.Nop()).Channels(), ","); got != "discord_bot,telegram" {
		t.Errorf("Channels() = %q", got)
	}

	cfg.Discord.Method = config.MethodWebhook
	cfg.Discord.WebhookURL = "https://discord.test/hook"
	cfg.Telegram.Enabled = false
	if got := strings.Join(FromConfig(cfg, zerolog.Nop()).Channels(), ","); got != "discord_webhook" {
		t.Errorf("Channels() = %q", got)
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, false)
	if err := c.Send(context.Background(), Message{Date: "2025-03-01", Body: "# Brief"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := buf.String(); got != "=== Daily Brief - 2025-03-01 ===\n# Brief\n" {
		t.Errorf("output = %q", got)
	}
}
