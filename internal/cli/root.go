// Package cli provides the command-line interface for the analyst swarm.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crypto-swarm/internal/config"
	"crypto-swarm/internal/logging"
	"crypto-swarm/internal/pipeline"
	"crypto-swarm/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-03-01"
)

// configOptional marks commands that run even when the config is invalid.
const configOptional = "config-optional"

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    *store.FileStore
	Pipeline *pipeline.Pipeline

	closeFn func() error
}

// Close releases resources opened for the command.
func (a *App) Close() error {
	if a.closeFn == nil {
		return nil
	}
	err := a.closeFn()
	a.closeFn = nil
	return err
}

func (a *App) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(path)
	if err != nil {
		if cmd.Annotations[configOptional] == "" {
			return err
		}
		cfg = config.Default()
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logCfg := cfg.LogConfig()
	logCfg.Out = cmd.ErrOrStderr()
	a.Config = cfg
	a.Logger = logging.NewLoggerWithConfig(logCfg)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Using default configuration")
	}
	if cfg.File != "" {
		a.Logger.Debug().Str("path", cfg.File).Msg("Configuration loaded")
	}

	a.Store = store.NewFileStore(cfg.Data.Dir, a.Logger)
	a.Pipeline, a.closeFn = pipeline.FromConfig(cfg, a.Logger)
	return nil
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "swarm",
		Short: "Crypto Analyst Swarm - daily multi-agent market brief",
		Long: `Crypto Analyst Swarm runs a set of analyst agents over daily market
indicators, combines their votes into a consensus, applies hard risk limits
and publishes a markdown brief to Discord or Telegram.

Stages can run one at a time (refresh, run-agent, aggregate, risk, brief,
post) or all together with 'swarm daily'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/crypto-swarm/config.yaml)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addStageCommands(rootCmd, app)
	addAgentCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)

	return rootCmd
}

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM. It returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errOut := &Output{writer: rootCmd.ErrOrStderr(), colorEnabled: isTerminal(rootCmd.ErrOrStderr())}
		errOut.Error("Error: %s", logging.Redact(err.Error()))
		return 1
	}
	return 0
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{configOptional: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				_ = output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Crypto Analyst Swarm v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}
