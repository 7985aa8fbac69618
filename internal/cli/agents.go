package cli

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"crypto-swarm/internal/agents"
	"crypto-swarm/internal/store"
)

// addAgentCommands adds agent definition commands.
func addAgentCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage analyst agent definitions",
	}
	cmd.AddCommand(newAgentsListCmd(app))
	cmd.AddCommand(newAgentsShowCmd(app))
	cmd.AddCommand(newAgentsSaveCmd(app))
	rootCmd.AddCommand(cmd)
}

func newAgentsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			specs, err := app.Store.LoadAgentSpecs()
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(specs)
			}
			if len(specs) == 0 {
				output.Warning("No agents found in %s", app.Store.Path(store.AgentsDir))
				return nil
			}

			table := NewTable(output, "NAME", "TYPE", "WEIGHTS", "DESCRIPTION")
			for _, s := range specs {
				kind := s.Type
				if kind == "" {
					kind = agents.TypeRuleBased
				}
				table.AddRow(s.Name, kind, strings.Join(s.IndicatorNames(), ", "), TruncateString(s.Description, 48))
			}
			table.Render()
			return nil
		},
	}
}

func newAgentsShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show an agent definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			spec, err := app.Store.LoadAgentSpec(args[0])
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			if output.IsJSON() || format == "json" {
				return output.JSON(spec)
			}
			data, err := store.MarshalAgentSpecYAML(spec)
			if err != nil {
				return err
			}
			output.Printf("%s", data)
			return nil
		},
	}
	cmd.Flags().String("format", "yaml", "output format: yaml or json")
	return cmd
}

func newAgentsSaveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "save <file|->",
		Short: "Validate and store an agent definition",
		Long: `Read a JSON or YAML agent definition from a file, or JSON from stdin with
"-", validate it and store it under agents/<name>.json. Prints ACK:<name>
on success. Fields the swarm does not use are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			var spec agents.Spec
			var err error
			if args[0] == "-" {
				var data []byte
				data, err = io.ReadAll(cmd.InOrStdin())
				if err == nil {
					spec, err = decodeStdinSpec(data)
				}
			} else {
				spec, err = store.ReadAgentSpecFile(args[0])
			}
			if err != nil {
				return err
			}

			check := spec
			if err := check.Prepare(); err != nil {
				return err
			}

			path, err := app.Store.SaveAgentSpec(spec)
			if err != nil {
				return err
			}
			app.Logger.Info().Str("agent", spec.Name).Str("path", path).Msg("Saved agent spec")
			if output.IsJSON() {
				return output.JSON(map[string]string{"name": spec.Name, "path": path})
			}
			output.Println("ACK:" + spec.Name)
			return nil
		},
	}
}

func decodeStdinSpec(data []byte) (agents.Spec, error) {
	if json.Valid(data) {
		return agents.DecodeSpecJSON(data)
	}
	return agents.DecodeSpecYAML(data)
}
