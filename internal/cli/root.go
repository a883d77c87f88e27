package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var cfg = config.New()

var rootCmd = &cobra.Command{
	Use:   "staleaudit",
	Short: "Find stale branches across GitHub repositories, resumably",
	Long: `Staleaudit crawls the branches of many GitHub repositories, finds the stale
ones (no commits within 90 days), resolves where each stale branch was last
merged, and writes tabular reports.

The crawl is checkpointed continuously: a multi-hour job that is interrupted
resumes where it left off, and no branch is ever classified twice.

The three commands form a pipeline:

  # 1. List a team's repositories with branch counts
  staleaudit inventory --org my-org --team platform --out inventory.csv

  # 2. Count stale branches per repository
  staleaudit count --org my-org --input inventory.csv --out counts.csv

  # 3. Collect full stale-branch records with merge targets
  staleaudit audit --org my-org --input counts.csv --out stale.csv

Output:
  By default, commands write human-readable progress to stdout. Structured
  event streams are available via --emit (json or ndjson); combine with
  --no-console for machine output.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, "verbose", false, "Enable verbose logging (prints every GitHub API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
