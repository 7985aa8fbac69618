// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days

	// Out overrides the console destination. Stage commands print their
	// results to stdout, so logs default to stderr.
	Out io.Writer
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "crypto-swarm", "logs", "swarm.log"),
		MaxSize:    50,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = out
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	return zerolog.New(NewRedactWriter(writer)).
		With().
		Timestamp().
		Caller().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether ParseLevel recognizes level by name.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
	// RunIDKey is the context key for the pipeline run ID.
	RunIDKey ContextKey = "run_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithRunID stores the run ID in the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// RunIDFromContext returns the run ID stored by WithRunID, if any.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RunIDKey).(string)
	return id
}

// WithAgent adds an agent name to the logger context.
func WithAgent(logger zerolog.Logger, agentName string) zerolog.Logger {
	return logger.With().Str("agent", agentName).Logger()
}

// WithStage adds a pipeline stage name to the logger context.
func WithStage(logger zerolog.Logger, stage string) zerolog.Logger {
	return logger.With().Str("stage", stage).Logger()
}

// WithDate adds the analysis date to the logger context.
func WithDate(logger zerolog.Logger, date string) zerolog.Logger {
	return logger.With().Str("date", date).Logger()
}

// LogVote logs an agent vote.
func LogVote(logger zerolog.Logger, agentName, action string, score, confidence float64) {
	logger.Info().
		Str("event", "vote").
		Str("agent", agentName).
		Str("action", action).
		Float64("score", score).
		Float64("confidence", confidence).
		Msg("Agent voted")
}

// LogConsensus logs an aggregated consensus.
func LogConsensus(logger zerolog.Logger, action string, score, agreement float64, voters int) {
	logger.Info().
		Str("event", "consensus").
		Str("action", action).
		Float64("score", score).
		Float64("agreement", agreement).
		Int("voters", voters).
		Msg("Consensus built")
}

// LogRiskFlag logs a fired risk check.
func LogRiskFlag(logger zerolog.Logger, flag string, value, threshold float64) {
	logger.Warn().
		Str("event", "risk_flag").
		Str("flag", flag).
		Float64("value", value).
		Float64("threshold", threshold).
		Msg("Risk threshold crossed")
}

// LogAPICall logs an outbound HTTP call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
