package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	"github.com/scarlettk3/Stale-Data-Collection/internal/flags"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stale branches per repository",
	Long: `Count the stale branches of every repository on the work list.

This is the coarse pass: it classifies each branch as stale or not, without
resolving merge targets, and writes the inventory back out with a
Stale_Branches column. The audit command uses those counts as early-exit
targets, so run count first.

Progress is checkpointed after every page and every branch. Re-running the
command skips repositories that are already fully counted.

Authentication:
  A GitHub token is read from GITHUB_TOKEN, or from GitHub CLI auth when the
  gh CLI is installed and logged in. Without a token the crawl proceeds
  anonymously against a much smaller API quota.

Exit codes:
  0 = all repositories counted
  2 = partial failure (some repositories errored; re-run to resume)
  3 = fatal error (bad configuration or input)

Examples:
  staleaudit count --org my-org --input inventory.csv --out counts.csv

  # A handful of repositories without an inventory file
  staleaudit count --org my-org --repos alpha,beta --out counts.csv`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}
		os.Exit(runCrawl(config.ModeCount))
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
	addCrawlFlags(countCmd)
	countCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write the augmented inventory CSV (with Stale_Branches) to this path")
}
