package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"crypto-swarm/internal/config"
	apperr "crypto-swarm/internal/errors"
	"crypto-swarm/internal/models"
	"crypto-swarm/internal/notify"
	"crypto-swarm/internal/pipeline"
	"crypto-swarm/internal/risk"
	"crypto-swarm/internal/store"
)

// Result modes for stage commands.
const (
	outputSummary = "summary"
	outputJSON    = "json"
	outputPath    = "path"
	outputNone    = "none"
)

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().String("output", outputSummary, "result output: summary, json, path or none")
}

// outputMode reads --output; the global --json flag forces json.
func outputMode(cmd *cobra.Command) (string, error) {
	if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
		return outputJSON, nil
	}
	mode, _ := cmd.Flags().GetString("output")
	switch mode {
	case outputSummary, outputJSON, outputPath, outputNone:
		return mode, nil
	}
	return "", apperr.NewValidationError("output", mode, "must be summary, json, path or none")
}

// emit writes a stage result in the selected mode. summary is called only
// in summary mode.
func emit(output *Output, mode string, payload interface{}, paths []string, summary func()) error {
	switch mode {
	case outputJSON:
		return output.JSON(payload)
	case outputPath:
		for _, p := range paths {
			output.Println(p)
		}
	case outputSummary:
		summary()
	}
	return nil
}

func dateFlag(cmd *cobra.Command, app *App) (string, error) {
	date, _ := cmd.Flags().GetString("date")
	return app.Pipeline.ResolveDate(date)
}

// addStageCommands adds the pipeline stage commands.
func addStageCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newRefreshCmd(app))
	rootCmd.AddCommand(newMockCmd(app))
	rootCmd.AddCommand(newRunAgentCmd(app))
	rootCmd.AddCommand(newAggregateCmd(app))
	rootCmd.AddCommand(newRiskCmd(app))
	rootCmd.AddCommand(newBriefCmd(app))
	rootCmd.AddCommand(newPostCmd(app))
	rootCmd.AddCommand(newDailyCmd(app))
}

func newRefreshCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch today's market indicators",
		Long: `Fetch CBBI, Rainbow Bands and Pi Cycle readings and save them under
indicators/<name>/<date>.json. A source that fails contributes its fallback
value.`,
		Example: `  swarm refresh
  swarm refresh --date 2025-03-01 --dry-run --output json
  swarm refresh --mock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mode, err := outputMode(cmd)
			if err != nil {
				return err
			}
			date, err := dateFlag(cmd, app)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			useMock, _ := cmd.Flags().GetBool("mock")

			var res *pipeline.RefreshResult
			if useMock {
				res, err = app.Pipeline.Mock(date)
			} else {
				res, err = app.Pipeline.Refresh(cmd.Context(), date, dryRun)
			}
			if err != nil {
				return err
			}

			return emit(output, mode, res, res.Paths, func() {
				printIndicators(output, res.Date, res.Indicators)
				for _, name := range res.Fallbacks {
					output.Warning("  %s used its fallback value", name)
				}
				if dryRun && !useMock {
					output.Dim("Dry run, nothing saved")
				}
			})
		},
	}
	cmd.Flags().String("date", "", "date to refresh (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("dry-run", false, "fetch without saving")
	cmd.Flags().Bool("mock", false, "save mock data instead of calling the APIs")
	addOutputFlag(cmd)
	return cmd
}

func printIndicators(output *Output, date string, inds models.Indicators) {
	output.Bold("Indicators for %s", date)
	names := inds.Names()
	sort.Strings(names)
	table := NewTable(output, "INDICATOR", "VALUE", "SIGNAL", "SOURCE")
	for _, name := range names {
		ind := inds[name]
		table.AddRow(name, FormatValue(ind.Value), output.Signal(ind.Signal), ind.Source)
	}
	table.Render()
}

func newMockCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Generate mock indicator data",
		Long:  "Generate plausible indicator readings for one or more days ending at --date, for offline runs.",
		Example: `  swarm mock --days 7 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mode, err := outputMode(cmd)
			if err != nil {
				return err
			}
			date, err := dateFlag(cmd, app)
			if err != nil {
				return err
			}
			days, _ := cmd.Flags().GetInt("days")
			if days < 1 {
				return apperr.NewValidationError("days", days, "must be at least 1")
			}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetInt64("seed")
				app.Pipeline.Reseed(seed)
			}

			start, _ := time.Parse(pipeline.DateLayout, date)
			var results []*pipeline.RefreshResult
			var paths []string
			for i := 0; i < days; i++ {
				day := start.AddDate(0, 0, -i).Format(pipeline.DateLayout)
				res, err := app.Pipeline.Mock(day)
				if err != nil {
					return err
				}
				results = append(results, res)
				paths = append(paths, res.Paths...)
			}

			return emit(output, mode, results, paths, func() {
				for _, res := range results {
					printIndicators(output, res.Date, res.Indicators)
					output.Println()
				}
				output.Success("✓ Generated mock data for %d day(s)", days)
			})
		},
	}
	cmd.Flags().String("date", "", "last date to generate (YYYY-MM-DD, default today)")
	cmd.Flags().Int("days", 1, "number of days to generate, counting back from --date")
	cmd.Flags().Int64("seed", 0, "random seed for reproducible data")
	addOutputFlag(cmd)
	return cmd
}

func newRunAgentCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-agent [name]",
		Short: "Run one analyst agent, or all with --all",
		Example: `  swarm run-agent "Cycle Watcher"
  swarm run-agent --agent cycle_watcher --dry-run --output json
  swarm run-agent --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mode, err := outputMode(cmd)
			if err != nil {
				return err
			}
			date, err := dateFlag(cmd, app)
			if err != nil {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			if all {
				res, err := app.Pipeline.RunAgents(cmd.Context(), date)
				if err != nil {
					return err
				}
				var paths []string
				for _, v := range res.Votes {
					paths = append(paths, res.Paths[v.AgentName])
				}
				return emit(output, mode, res, paths, func() {
					printVotes(output, res.Votes)
					for _, e := range res.Errors {
						output.Error("  %s", e)
					}
				})
			}

			name, _ := cmd.Flags().GetString("agent")
			if len(args) == 1 {
				name = args[0]
			}
			if name == "" {
				return apperr.NewValidationError("agent", name, "agent name is required (argument, --agent or --all)")
			}

			vote, path, err := app.Pipeline.RunAgent(cmd.Context(), name, date, dryRun)
			if err != nil {
				return err
			}
			var paths []string
			if path != "" {
				paths = []string{path}
			}
			return emit(output, mode, vote, paths, func() {
				printVotes(output, []models.Vote{*vote})
				output.Dim("%s", vote.Rationale)
			})
		},
	}
	cmd.Flags().String("agent", "", "name of the agent to run")
	cmd.Flags().Bool("all", false, "run every stored agent concurrently")
	cmd.Flags().String("date", "", "date to analyze (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("dry-run", false, "use mock indicators and do not save the vote")
	addOutputFlag(cmd)
	return cmd
}

func printVotes(output *Output, votes []models.Vote) {
	table := NewTable(output, "AGENT", "SCORE", "ACTION", "CONFIDENCE")
	for _, v := range votes {
		table.AddRow(v.AgentName, FormatScore(v.Score), output.Action(string(v.Action)), FormatRatio(v.Confidence))
	}
	table.Render()
}

func printConsensus(output *Output, c *models.Consensus) {
	output.Printf("%s %s  score %s  agreement %s  (%d votes)\n",
		c.Emoji, output.Action(c.Action), FormatScore(c.Score), FormatRatio(c.AgreementLevel), len(c.AgentVotes))
	if c.RiskOverride {
		output.Warning("Risk override: %s replaced by %s", c.OriginalAction, c.Action)
	}
	for _, f := range c.RiskFlags {
		output.Printf("  %s %s: %s\n", f.Emoji, f.Name, f.Description)
	}
	if c.Timestamp != "" {
		output.Dim("  generated %s", FormatTimestamp(c.Timestamp))
	}
}

func newAggregateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Combine the day's agent votes into a consensus",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			mode, err := outputMode(cmd)
			if err != nil {
				return err
			}
			date, err := dateFlag(cmd, app)
			if err != nil {
				return err
			}
			c, path, err := app.Pipeline.Aggregate(date, "")
			if err != nil {
				return err
			}
			return emit(output, mode, c, []string{path}, func() { printConsensus(output, c) })
		},
	}
	cmd.Flags().String("date", "", "date to aggregate (YYYY-MM-DD, default today)")
	addOutputFlag(cmd)
	return cmd
}

func newRiskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Apply hard risk limits to the day's consensus",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if list, _ := cmd.Flags().GetBool("checks"); list {
				return printChecks(output)
			}
			mode, err := outputMode(cmd)
			if err != nil {
				return err
			}
			date, err := dateFlag(cmd, app)
			if err != nil {
				return err
			}
			c, path, err := app.Pipeline.ApplyRisk(date)
			if err != nil {
				return err
			}
			return emit(output, mode, c, []string{path}, func() { printConsensus(output, c) })
		},
	}
	cmd.Flags().String("date", "", "date to process (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("checks", false, "list the registered risk checks and exit")
	addOutputFlag(cmd)
	return cmd
}

func printChecks(output *Output) error {
	checks := risk.Checks()
	if output.IsJSON() {
		rows := make([]map[string]interface{}, len(checks))
		for i, c := range checks {
			rows[i] = map[string]interface{}{
				"flag": c.Flag, "name": c.Name, "indicator": c.Indicator, "threshold": c.Threshold,
			}
		}
		return output.JSON(rows)
	}
	table := NewTable(output, "FLAG", "NAME", "INDICATOR", "THRESHOLD")
	for _, c := range checks {
		table.AddRow(c.Emoji+" "+c.Flag, c.Name, c.Indicator, ">= "+FormatValue(c.Threshold))
	}
	table.Render()
	return nil
}

func newBriefCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Render the daily markdown brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			date, err := dateFlag(cmd, app)
			if err != nil {
				return err
			}
			res, err := app.Pipeline.Brief(date)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(res)
			}
			show, _ := cmd.Flags().GetBool("print")
			if show {
				output.Printf("%s", res.Markdown)
				return nil
			}
			output.Println(res.Path)
			return nil
		},
	}
	cmd.Flags().String("date", "", "date to render (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("print", false, "print the markdown instead of the saved path")
	return cmd
}

func newPostCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a brief to the configured channels",
		Long: `Post a brief to Discord (bot or webhook) and Telegram. Without --file the
brief for --date is posted, or the latest brief when no date is given.
A relative --file is also looked up under the briefs directory.`,
		Example: `  swarm post
  swarm post --file 2025-03-01.md --method webhook --webhook-url https://discord.com/api/webhooks/...
  swarm post --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			content, date, err := readBrief(cmd, app.Store)
			if err != nil {
				return err
			}

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			var notifier *notify.MultiNotifier
			if dryRun {
				notifier = notify.NewMultiNotifier(app.Logger, notify.NewConsole(output.Writer(), output.ColorEnabled()))
			} else {
				cfg := *app.Config
				if err := applyPostFlags(cmd, &cfg); err != nil {
					return err
				}
				notifier = notify.FromConfig(&cfg, app.Logger)
			}
			app.Pipeline.SetNotifier(notifier)

			if err := app.Pipeline.Post(cmd.Context(), date, content); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"posted": !dryRun, "date": date, "channels": notifier.Channels()})
			}
			if !dryRun {
				output.Success("✓ Posted brief to %s", strings.Join(notifier.Channels(), ", "))
			}
			return nil
		},
	}
	cmd.Flags().String("file", "", "markdown file to post")
	cmd.Flags().String("date", "", "post the brief saved for this date")
	cmd.Flags().String("method", "", "Discord method: bot or webhook (default from config)")
	cmd.Flags().String("channel-id", "", "Discord channel ID for the bot method")
	cmd.Flags().String("webhook-url", "", "Discord webhook URL for the webhook method")
	cmd.Flags().Bool("dry-run", false, "print the message instead of posting")
	return cmd
}

func readBrief(cmd *cobra.Command, files *store.FileStore) (content, date string, err error) {
	file, _ := cmd.Flags().GetString("file")
	date, _ = cmd.Flags().GetString("date")

	if file == "" {
		content, err = files.LoadBrief(date)
		return content, date, err
	}

	path := file
	if !filepath.IsAbs(path) {
		if _, statErr := os.Stat(path); statErr != nil {
			candidate := files.Path(store.BriefsDir, file)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
			}
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read brief: %w", err)
	}
	return string(data), date, nil
}

func applyPostFlags(cmd *cobra.Command, cfg *config.Config) error {
	if method, _ := cmd.Flags().GetString("method"); method != "" {
		cfg.Discord.Method = method
	}
	if id, _ := cmd.Flags().GetString("channel-id"); id != "" {
		cfg.Discord.ChannelID = id
	}
	if url, _ := cmd.Flags().GetString("webhook-url"); url != "" {
		cfg.Discord.WebhookURL = url
	}

	switch cfg.Discord.Method {
	case config.MethodWebhook:
		if cfg.Discord.WebhookURL == "" {
			return apperr.NewValidationError("webhook-url", "", "webhook URL is required when using webhook method")
		}
	case config.MethodBot:
		if cfg.Discord.Enabled && cfg.Discord.ChannelID == "" {
			return apperr.NewValidationError("channel-id", "", "Discord channel ID is required")
		}
	default:
		return apperr.NewValidationError("method", cfg.Discord.Method, "must be 'bot' or 'webhook'")
	}
	return nil
}

func newDailyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Run every stage for one day",
		Long: `Refresh indicators, run all agents, aggregate their votes, apply risk
limits, render the brief, archive the consensus and post it.`,
		Example: `  swarm daily
  swarm daily --mock --no-post`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			date, _ := cmd.Flags().GetString("date")
			useMock, _ := cmd.Flags().GetBool("mock")
			noPost, _ := cmd.Flags().GetBool("no-post")

			start := time.Now()
			res, err := app.Pipeline.Daily(cmd.Context(), pipeline.DailyOptions{
				Date:     date,
				UseMock:  useMock,
				SkipPost: noPost,
			})
			if err != nil && res == nil {
				return err
			}

			if output.IsJSON() {
				if jerr := output.JSON(res); jerr != nil {
					return jerr
				}
				return err
			}

			output.Bold("Daily run %s (%s)", res.Date, res.RunID)
			printConsensus(output, res.Consensus)
			for _, e := range res.Errors {
				output.Error("  %s", e)
			}
			output.Printf("Brief: %s\n", res.Brief.Path)
			if res.Archived {
				output.Dim("Archived to history")
			}
			if res.Posted {
				output.Success("✓ Posted brief")
			}
			output.Dim("Finished in %s", FormatDuration(time.Since(start)))
			return err
		},
	}
	cmd.Flags().String("date", "", "date to run (YYYY-MM-DD, default today)")
	cmd.Flags().Bool("mock", false, "use mock indicators instead of calling the APIs")
	cmd.Flags().Bool("no-post", false, "render the brief without posting it")
	return cmd
}
