package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	"github.com/scarlettk3/Stale-Data-Collection/internal/fetcher"
	gh "github.com/scarlettk3/Stale-Data-Collection/internal/github"
	"github.com/scarlettk3/Stale-Data-Collection/internal/output"
)

// Run executes a count or detail crawl end to end: credential resolution,
// client and governor construction, work-list discovery, and the batch
// schedule. The returned summary is non-nil whenever the run got as far as
// scheduling, even if it was interrupted.
func Run(ctx context.Context, cfg *config.Config, mode config.Mode) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	out, err := buildOutput(cfg)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	tasks, err := resolveTasks(cfg, mode)
	if err != nil {
		return nil, err
	}
	if cfg.Runtime.DryRun {
		return dryRun(out, cfg, tasks, mode)
	}

	client, governor, err := buildClient(ctx, cfg, out)
	if err != nil {
		return nil, err
	}
	store, err := checkpoint.NewStore(cfg.Output.Checkpoint)
	if err != nil {
		return nil, err
	}

	crawler, err := NewCrawler(client, governor, store, out, cfg, mode)
	if err != nil {
		return nil, err
	}
	scheduler, err := NewScheduler(crawler, store, out, cfg, mode)
	if err != nil {
		return nil, err
	}

	governor.EnsureCapacity(ctx)
	return scheduler.Run(ctx, tasks)
}

// RunInventory lists a team's repositories with branch counts and writes
// the inventory CSV that seeds the count pass.
func RunInventory(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Runtime.Timeout)
	defer cancel()

	out, err := buildOutput(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	client, governor, err := buildClient(ctx, cfg, out)
	if err != nil {
		return err
	}

	rows, err := BuildInventory(ctx, client, governor, out, cfg.Targeting.Org, cfg.Targeting.Team)
	if err != nil {
		return err
	}

	repos := make([]string, len(rows))
	counts := make([]int, len(rows))
	for i, row := range rows {
		repos[i] = row.Repository
		counts[i] = row.TotalBranches
	}
	if !cfg.Output.NoConsole {
		output.RenderInventoryTable(os.Stdout, repos, counts)
	}
	if cfg.Output.Out != "" {
		if err := output.WriteInventoryReport(cfg.Output.Out, repos, counts); err != nil {
			return err
		}
		_ = out.Emitf("inventory saved to %s", cfg.Output.Out)
	}
	return nil
}

func resolveTasks(cfg *config.Config, mode config.Mode) ([]RepoTask, error) {
	if len(cfg.Targeting.Repos) > 0 {
		return TasksFromRepos(cfg.Targeting.Org, cfg.Targeting.Repos)
	}
	return LoadInventory(cfg.Targeting.Input, cfg.Targeting.Org, mode)
}

func dryRun(out *output.Manager, cfg *config.Config, tasks []RepoTask, mode config.Mode) (*Summary, error) {
	store, err := checkpoint.NewStore(cfg.Output.Checkpoint)
	if err != nil {
		return nil, err
	}
	doc := store.Load()
	pending, skipped := FilterPending(tasks, doc, mode)

	summary := &Summary{
		ReposPlanned: len(tasks),
		ReposSkipped: len(skipped),
		Statuses:     make(map[string]RepoStatus, len(skipped)),
	}
	for _, task := range skipped {
		summary.Statuses[task.FullName()] = StatusSkipped
	}
	names := make([]string, len(pending))
	for i, task := range pending {
		names[i] = task.FullName()
	}
	_ = out.Emitf("dry run: %d of %d repositories need processing", len(pending), len(tasks))
	if len(names) > 0 {
		_ = out.Emitf("would process: %s", strings.Join(names, ", "))
	}
	return summary, nil
}

// buildOutput assembles the sink fan-out. The console stays on stdout
// unless a structured emit stream claims it, in which case human-readable
// progress moves to stderr.
func buildOutput(cfg *config.Config) (*output.Manager, error) {
	out := output.NewManager()
	consoleTo := os.Stdout
	for _, format := range cfg.Output.Emit {
		sink, err := output.NewEmitSink(os.Stdout, strings.ToLower(strings.TrimSpace(format)))
		if err != nil {
			return nil, err
		}
		if err := out.AddSink(sink); err != nil {
			return nil, err
		}
		consoleTo = os.Stderr
	}
	if !cfg.Output.NoConsole {
		if err := out.AddSink(output.NewConsoleSink(consoleTo)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func buildClient(ctx context.Context, cfg *config.Config, out *output.Manager) (*gh.Client, *fetcher.Governor, error) {
	token, source, err := gh.ResolveAuthToken(ctx, "")
	if err != nil {
		_ = out.Emitf("credential resolution failed (%v), proceeding anonymously", err)
	}
	if token == "" {
		_ = out.Emitf("no credential found, proceeding anonymously with a reduced quota")
	} else if cfg.Runtime.Verbose {
		_ = out.Emitf("using credential from %s", source)
	}

	policy := gh.RetryPolicy{
		MaxTransportRetries: cfg.Pacing.TransportRetries,
		TransportBackoff:    5 * time.Second,
		MaxStatusRetries:    cfg.Pacing.StatusRetries,
		StatusBackoff:       cfg.Pacing.StatusBackoff,
		AttemptTimeout:      cfg.Pacing.RequestTimeout,
	}
	client, err := gh.NewClient(ctx, token,
		gh.WithRetryPolicy(policy),
		gh.WithCallDelay(cfg.Pacing.CallDelay),
		gh.WithRequestTimeout(cfg.Pacing.RequestTimeout),
		gh.WithVerbose(cfg.Runtime.Verbose, os.Stderr),
	)
	if err != nil {
		return nil, nil, err
	}

	governor := fetcher.NewGovernor(client, fetcher.NewRequestBudget(), cfg.Staleness.RateLimitFloor, cfg.Staleness.ResetMargin)
	governor.OnProgress(func(format string, args ...any) {
		_ = out.Emit(output.Event{Type: output.EventGovernorWait, Message: fmt.Sprintf(format, args...)})
	})
	return client, governor, nil
}
