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

// Exit codes shared by the crawl commands:
//
//	0 = run completed, every repository reached a terminal success state
//	2 = partial failure (some repositories errored, or reports still pending)
//	3 = fatal error (bad configuration or input; nothing was crawled)
const (
	exitOK      = 0
	exitPartial = 2
	exitFatal   = 3
)

// runCrawl validates the shared configuration and executes a count or detail
// crawl, translating the summary into an exit code.
func runCrawl(mode config.Mode) int {
	if err := cfg.LoadEnvOverrides(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}
	if err := cfg.Validate(mode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitFatal
	}

	summary, err := engine.Run(context.Background(), cfg, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if summary == nil {
			return exitFatal
		}
		return exitPartial
	}
	if summary.Failures() > 0 || len(summary.ReportPending) > 0 {
		return exitPartial
	}
	return exitOK
}

// addCrawlFlags wires the flags shared by the count and audit commands.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&cfg.Targeting.Org, flags.FlagOrg, "", "GitHub organization that owns the repositories")
	cmd.Flags().StringVar(&cfg.Targeting.Input, flags.FlagInput, "", "Inventory CSV listing the repositories to crawl")
	cmd.Flags().StringSliceVar(&cfg.Targeting.Repos, flags.FlagRepos, nil, "Repositories as NAME or OWNER/NAME, bypassing --input (repeatable; comma-separated accepted)")
	cmd.Flags().StringVar(&cfg.Output.Checkpoint, flags.FlagCheckpoint, cfg.Output.Checkpoint, "Checkpoint file recording crawl progress")
	cmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable)")
	cmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit)")
	cmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global deadline for the whole run")
	cmd.Flags().BoolVar(&cfg.Runtime.DryRun, flags.FlagDryRun, false, "Resolve the work list and print it without crawling")
}
