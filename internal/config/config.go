// Package config provides configuration management for the analyst swarm.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/indicators"
	"crypto-swarm/internal/logging"
	"crypto-swarm/pkg/utils"
)

// Config holds all application configuration.
type Config struct {
	Data        DataConfig       `mapstructure:"data"`
	Agents      AgentsConfig     `mapstructure:"agents"`
	Indicators  IndicatorsConfig `mapstructure:"indicators"`
	Brief       BriefConfig      `mapstructure:"brief"`
	Discord     DiscordConfig    `mapstructure:"discord"`
	Telegram    TelegramConfig   `mapstructure:"telegram"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	Credentials Credentials      `mapstructure:"credentials"`

	// File is the config file that was read, empty when defaults were used.
	File string `mapstructure:"-"`
}

// DataConfig locates the working set on disk.
type DataConfig struct {
	Dir       string `mapstructure:"dir"`
	ActionMap string `mapstructure:"action_map"` // consensus_to_action YAML
	History   bool   `mapstructure:"history"`    // archive final consensus in SQLite
	HistoryDB string `mapstructure:"history_db"`
}

// AgentsConfig holds agent defaults.
type AgentsConfig struct {
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BaseURL     string        `mapstructure:"base_url"` // OpenAI-compatible endpoint
}

// IndicatorsConfig holds indicator source settings.
type IndicatorsConfig struct {
	CBBIURL      string        `mapstructure:"cbbi_url"`
	RainbowURL   string        `mapstructure:"rainbow_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	MockSeed     int64         `mapstructure:"mock_seed"`
}

// BriefConfig holds daily brief settings.
type BriefConfig struct {
	Template      string   `mapstructure:"template"`
	KeyIndicators []string `mapstructure:"key_indicators"`
}

// DiscordConfig holds Discord posting configuration.
type DiscordConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Method     string `mapstructure:"method"` // bot or webhook
	ChannelID  string `mapstructure:"channel_id"`
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
	AvatarURL  string `mapstructure:"avatar_url"`
	APIBase    string `mapstructure:"api_base"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ChatID      string `mapstructure:"chat_id"`
	APIEndpoint string `mapstructure:"api_endpoint"`
}

// LoggingConfig mirrors logging.LogConfig.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Credentials holds secrets; they may live in a separate credentials.yaml.
type Credentials struct {
	OpenAIAPIKey     string `mapstructure:"openai_api_key"`
	DiscordBotToken  string `mapstructure:"discord_bot_token"`
	TelegramBotToken string `mapstructure:"telegram_bot_token"`
}

// Discord posting methods.
const (
	MethodBot     = "bot"
	MethodWebhook = "webhook"
)

// envBindings maps config keys to the environment variables that override
// them, most specific first. SWARM_<SECTION>_<KEY> works for every key.
var envBindings = map[string][]string{
	"data.dir":                       {"SWARM_DATA_DIR", "DATA_STORAGE_PATH"},
	"discord.channel_id":             {"SWARM_DISCORD_CHANNEL_ID", "DISCORD_MARKET_PULSE_CHANNEL_ID"},
	"discord.webhook_url":            {"SWARM_DISCORD_WEBHOOK_URL", "DISCORD_WEBHOOK_URL"},
	"credentials.discord_bot_token":  {"SWARM_CREDENTIALS_DISCORD_BOT_TOKEN", "DISCORD_BOT_TOKEN"},
	"credentials.openai_api_key":     {"SWARM_CREDENTIALS_OPENAI_API_KEY", "OPENAI_API_KEY"},
	"credentials.telegram_bot_token": {"SWARM_CREDENTIALS_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN"},
	"telegram.chat_id":               {"SWARM_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID"},
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "crypto-swarm")
	}
	return filepath.Join(home, ".config", "crypto-swarm")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	log := logging.DefaultLogConfig()

	v.SetDefault("data.dir", "data")
	v.SetDefault("data.action_map", filepath.Join("config", "action_map.yaml"))
	v.SetDefault("data.history", false)
	v.SetDefault("data.history_db", "")

	v.SetDefault("agents.model", "gpt-4o-mini")
	v.SetDefault("agents.temperature", 0.7)
	v.SetDefault("agents.timeout", "60s")
	v.SetDefault("agents.base_url", "")

	v.SetDefault("indicators.cbbi_url", indicators.DefaultCBBIURL)
	v.SetDefault("indicators.rainbow_url", indicators.DefaultRainbowURL)
	v.SetDefault("indicators.timeout", "30s")
	v.SetDefault("indicators.max_attempts", 3)
	v.SetDefault("indicators.initial_delay", "1s")
	v.SetDefault("indicators.max_delay", "30s")
	v.SetDefault("indicators.cache_ttl", "1h")
	v.SetDefault("indicators.mock_seed", 0)

	v.SetDefault("brief.template", "")
	v.SetDefault("brief.key_indicators", []string{indicators.NameCBBI, indicators.NameRainbowBands, indicators.NamePiCycle})

	v.SetDefault("discord.enabled", true)
	v.SetDefault("discord.method", MethodBot)
	v.SetDefault("discord.channel_id", "")
	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("discord.username", "Crypto Analyst Swarm")
	v.SetDefault("discord.avatar_url", "")
	v.SetDefault("discord.api_base", "https://discord.com/api/v10")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.api_endpoint", "")

	v.SetDefault("logging.level", log.Level)
	v.SetDefault("logging.console", log.Console)
	v.SetDefault("logging.file", log.File)
	v.SetDefault("logging.file_path", log.FilePath)
	v.SetDefault("logging.max_size_mb", log.MaxSize)
	v.SetDefault("logging.max_backups", log.MaxBackups)
	v.SetDefault("logging.max_age_days", log.MaxAge)

	v.SetDefault("credentials.openai_api_key", "")
	v.SetDefault("credentials.discord_bot_token", "")
	v.SetDefault("credentials.telegram_bot_token", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads the YAML config at path, or DefaultConfigPath when path is
// empty. A missing file means defaults; credentials.yaml next to the config
// file is merged in when present. Environment variables override both.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	v := newViper()
	v.SetConfigType("yaml")

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
		}
		cfg.File = path
	} else if explicit && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}

	credPath := filepath.Join(filepath.Dir(path), "credentials.yaml")
	if _, err := os.Stat(credPath); err == nil {
		v.SetConfigFile(credPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("loading credentials.yaml: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Data.Dir) == "" {
		return apperr.NewValidationError("data.dir", c.Data.Dir, "must not be empty")
	}
	if c.Agents.Temperature < 0 || c.Agents.Temperature > 2 {
		return apperr.NewValidationError("agents.temperature", c.Agents.Temperature, "must be between 0 and 2")
	}
	if c.Agents.Timeout <= 0 {
		return apperr.NewValidationError("agents.timeout", c.Agents.Timeout, "must be positive")
	}
	if c.Indicators.MaxAttempts < 1 {
		return apperr.NewValidationError("indicators.max_attempts", c.Indicators.MaxAttempts, "must be at least 1")
	}
	if c.Indicators.Timeout <= 0 {
		return apperr.NewValidationError("indicators.timeout", c.Indicators.Timeout, "must be positive")
	}
	if c.Indicators.CacheTTL < 0 {
		return apperr.NewValidationError("indicators.cache_ttl", c.Indicators.CacheTTL, "must not be negative")
	}
	if c.Discord.Method != MethodBot && c.Discord.Method != MethodWebhook {
		return apperr.NewValidationError("discord.method", c.Discord.Method, "must be 'bot' or 'webhook'")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return apperr.NewValidationError("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}
	return nil
}

// HistoryPath returns the history database path, defaulting to
// history.db under the data directory.
func (c *Config) HistoryPath() string {
	if c.Data.HistoryDB != "" {
		return c.Data.HistoryDB
	}
	return filepath.Join(c.Data.Dir, "history.db")
}

// LogConfig converts the logging section for the logging package.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAgeDays,
	}
}

// FetcherConfig converts the indicators section for the indicator fetcher.
func (c *Config) FetcherConfig() indicators.Config {
	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = c.Indicators.MaxAttempts
	if c.Indicators.InitialDelay > 0 {
		retry.InitialDelay = c.Indicators.InitialDelay
	}
	if c.Indicators.MaxDelay > 0 {
		retry.MaxDelay = c.Indicators.MaxDelay
	}
	return indicators.Config{
		CBBIURL:    c.Indicators.CBBIURL,
		RainbowURL: c.Indicators.RainbowURL,
		Timeout:    c.Indicators.Timeout,
		Retry:      retry,
		CacheTTL:   c.Indicators.CacheTTL,
	}
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Credentials.OpenAIAPIKey = mask(c.Credentials.OpenAIAPIKey)
	out.Credentials.DiscordBotToken = mask(c.Credentials.DiscordBotToken)
	out.Credentials.TelegramBotToken = mask(c.Credentials.TelegramBotToken)
	if c.Discord.WebhookURL != "" {
		out.Discord.WebhookURL = mask(c.Discord.WebhookURL)
	}
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
