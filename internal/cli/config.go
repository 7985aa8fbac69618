package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"crypto-swarm/internal/config"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			redacted := app.Config.Redacted()
			if output.IsJSON() {
				return output.JSON(configView(&redacted))
			}
			return showConfig(output, &redacted)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: map[string]string{configOptional: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := configPath(cmd, app)
			if output.IsJSON() {
				_ = output.JSON(map[string]string{"path": path, "dir": filepath.Dir(path)})
			} else {
				output.Println(path)
			}
		},
	})

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write configuration templates",
		Long:        "Write config.yaml, credentials.yaml and action_map.yaml templates into the configuration directory.",
		Annotations: map[string]string{configOptional: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			force, _ := cmd.Flags().GetBool("force")
			res, err := config.Init(filepath.Dir(configPath(cmd, app)), force)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}
			for _, p := range res.Written {
				output.Success("✓ Wrote %s", p)
			}
			for _, p := range res.Skipped {
				output.Dim("  Skipped %s (exists, use --force to overwrite)", p)
			}
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite existing files")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func configPath(cmd *cobra.Command, app *App) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	if app.Config != nil && app.Config.File != "" {
		return app.Config.File
	}
	return config.DefaultConfigPath()
}

func showConfig(output *Output, cfg *config.Config) error {
	if cfg.File != "" {
		output.Dim("Loaded from %s", cfg.File)
	} else {
		output.Dim("No config file found, using defaults")
	}
	output.Println()

	data, err := yaml.Marshal(configView(cfg))
	if err != nil {
		return err
	}
	output.Printf("%s", data)
	return nil
}

// configView mirrors the config file layout for display.
func configView(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"dir":        cfg.Data.Dir,
			"action_map": cfg.Data.ActionMap,
			"history":    cfg.Data.History,
			"history_db": cfg.HistoryPath(),
		},
		"agents": map[string]interface{}{
			"model":       cfg.Agents.Model,
			"temperature": cfg.Agents.Temperature,
			"timeout":     cfg.Agents.Timeout.String(),
			"base_url":    cfg.Agents.BaseURL,
		},
		"indicators": map[string]interface{}{
			"cbbi_url":     cfg.Indicators.CBBIURL,
			"rainbow_url":  cfg.Indicators.RainbowURL,
			"timeout":      cfg.Indicators.Timeout.String(),
			"max_attempts": cfg.Indicators.MaxAttempts,
			"cache_ttl":    cfg.Indicators.CacheTTL.String(),
		},
		"brief": map[string]interface{}{
			"template":       cfg.Brief.Template,
			"key_indicators": cfg.Brief.KeyIndicators,
		},
		"discord": map[string]interface{}{
			"enabled":     cfg.Discord.Enabled,
			"method":      cfg.Discord.Method,
			"channel_id":  cfg.Discord.ChannelID,
			"webhook_url": cfg.Discord.WebhookURL,
			"username":    cfg.Discord.Username,
		},
		"telegram": map[string]interface{}{
			"enabled": cfg.Telegram.Enabled,
			"chat_id": cfg.Telegram.ChatID,
		},
		"logging": map[string]interface{}{
			"level":   cfg.Logging.Level,
			"console": cfg.Logging.Console,
			"file":    cfg.Logging.File,
		},
		"credentials": map[string]interface{}{
			"openai_api_key":     cfg.Credentials.OpenAIAPIKey,
			"discord_bot_token":  cfg.Credentials.DiscordBotToken,
			"telegram_bot_token": cfg.Credentials.TelegramBotToken,
		},
	}
}
