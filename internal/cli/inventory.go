package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	"github.com/scarlettk3/Stale-Data-Collection/internal/engine"
	"github.com/scarlettk3/Stale-Data-Collection/internal/flags"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List a team's repositories with branch counts",
	Long: `List every repository a team has access to, with an exact branch count per
repository, and write the result as the inventory CSV that seeds the count
command.

Examples:
  staleaudit inventory --org my-org --team platform --out inventory.csv`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}
		if err := cfg.LoadEnvOverrides(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitFatal)
		}
		if err := cfg.Validate(config.ModeInventory); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitFatal)
		}
		if err := engine.RunInventory(context.Background(), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitPartial)
		}
	},
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.Flags().StringVar(&cfg.Targeting.Org, flags.FlagOrg, "", "GitHub organization the team belongs to")
	inventoryCmd.Flags().StringVar(&cfg.Targeting.Team, flags.FlagTeam, "", "Team slug whose repositories are listed")
	inventoryCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write the inventory CSV to this path")
	inventoryCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable)")
	inventoryCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit)")
	inventoryCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global deadline for the whole run")
}
