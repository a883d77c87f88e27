package flags

// Package flags defines canonical CLI flag names shared across the CLI and
// engine. Keeping these as constants avoids drift between Cobra flag wiring
// and other code paths that reference flags (e.g. resume hints in summaries).
// IMPORTANT: These are flag *names* without leading dashes.
const (
	// Targeting
	FlagOrg   = "org"
	FlagTeam  = "team"
	FlagInput = "input"
	FlagRepos = "repos"

	// Output
	FlagOut        = "out"
	FlagIndex      = "index"
	FlagCheckpoint = "checkpoint"
	FlagEmit       = "emit"
	FlagNoConsole  = "no-console"

	// Runtime
	FlagTimeout = "timeout"
	FlagDryRun  = "dry-run"
)
