package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	"github.com/scarlettk3/Stale-Data-Collection/internal/flags"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Collect detailed stale-branch records with merge targets",
	Long: `Collect a full record for every stale branch: its name, the date of its
last commit, and the branch it was last merged to.

The input CSV must carry the Stale_Branches column produced by the count
command; the crawl stops paging a repository as soon as that many stale
branches are found. Merge targets are resolved through pull-request and
commit-search heuristics and are best-effort: "Unknown" means no evidence
was found, "Error" means the lookup itself failed.

Progress is checkpointed after every page and every branch; re-running the
command resumes where the last run stopped and never reclassifies a branch.

Exit codes:
  0 = all repositories audited and reports written
  2 = partial failure (some repositories errored, or a report is pending)
  3 = fatal error (bad configuration or input)

Examples:
  staleaudit audit --org my-org --input counts.csv --out stale.csv --index index.csv

  # Stream machine-readable events to stdout
  staleaudit audit --org my-org --input counts.csv --out stale.csv --no-console --emit ndjson`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 {
			_ = cmd.Help()
			return
		}
		os.Exit(runCrawl(config.ModeDetail))
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	addCrawlFlags(auditCmd)
	auditCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write the stale-branch report CSV to this path")
	auditCmd.Flags().StringVar(&cfg.Output.Index, flags.FlagIndex, "", "Write a cross-repository index CSV to this path")
}
