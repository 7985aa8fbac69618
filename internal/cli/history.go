package cli

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"crypto-swarm/internal/store"
)

// addHistoryCommands adds consensus history commands.
func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show archived daily consensus records",
		Long: `Show final consensus records archived by 'swarm daily' in the SQLite
history database. With --date the full record for that day is printed.`,
		Example: `  swarm history --limit 30
  swarm history --date 2025-03-01 --json
  swarm history --flags`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			db, err := store.NewSQLiteStore(app.Config.HistoryPath())
			if err != nil {
				return err
			}
			defer db.Close()

			if date, _ := cmd.Flags().GetString("date"); date != "" {
				c, err := db.GetConsensus(cmd.Context(), date)
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(c)
				}
				output.Bold("Consensus for %s", c.Date)
				printConsensus(output, c)
				printVotes(output, c.AgentVotes)
				return nil
			}

			if showFlags, _ := cmd.Flags().GetBool("flags"); showFlags {
				counts, err := db.RiskFlagCounts(cmd.Context())
				if err != nil {
					return err
				}
				if output.IsJSON() {
					return output.JSON(counts)
				}
				names := make([]string, 0, len(counts))
				for name := range counts {
					names = append(names, name)
				}
				sort.Strings(names)
				table := NewTable(output, "FLAG", "DAYS")
				for _, name := range names {
					table.AddRow(name, strconv.Itoa(counts[name]))
				}
				table.Render()
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := db.ListConsensus(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(entries)
			}
			if len(entries) == 0 {
				output.Warning("No archived consensus records")
				return nil
			}

			table := NewTable(output, "DATE", "ACTION", "SCORE", "AGREEMENT", "VOTERS", "OVERRIDE")
			for _, e := range entries {
				override := ""
				if e.RiskOverride {
					override = output.Red("yes")
				}
				table.AddRow(e.Date, e.Emoji+" "+output.Action(e.Action), FormatScore(e.Score),
					FormatRatio(e.AgreementLevel), strconv.Itoa(e.Voters), override)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", 14, "number of days to show (0 for all)")
	cmd.Flags().String("date", "", "show the full record for one date")
	cmd.Flags().Bool("flags", false, "count how often each risk flag fired")
	rootCmd.AddCommand(cmd)
}
