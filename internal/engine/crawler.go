package engine

import (
	"context"
	"errors"
	"time"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	"github.com/scarlettk3/Stale-Data-Collection/internal/fetcher"
	gh "github.com/scarlettk3/Stale-Data-Collection/internal/github"
	"github.com/scarlettk3/Stale-Data-Collection/internal/output"
)

// branchPageSize is the branch-listing page size. Emptiness of a page is the
// sole pagination stop condition; no Link header is consulted.
const branchPageSize = 100

// fallbackDefaultBranch stands in when the repository metadata fetch fails.
// A wrong guess only risks classifying the primary branch, never a crash.
const fallbackDefaultBranch = "main"

// Crawler drives the crawl of a single repository: resumable branch
// enumeration, per-branch staleness classification, and checkpointing after
// every unit of work. It is strictly sequential; all waiting is synchronous
// on the calling goroutine, which is what keeps the shared quota reasoning
// simple.
type Crawler struct {
	client   *gh.Client
	governor *fetcher.Governor
	store    *checkpoint.Store
	out      *output.Manager
	resolver *MergeResolver
	mode     config.Mode
	maxAge   time.Duration
	pacing   config.Pacing

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewCrawler(client *gh.Client, governor *fetcher.Governor, store *checkpoint.Store, out *output.Manager, cfg *config.Config, mode config.Mode) (*Crawler, error) {
	if client == nil || client.Client == nil {
		return nil, errors.New("crawler: client is nil")
	}
	if governor == nil {
		return nil, errors.New("crawler: governor is nil")
	}
	if store == nil {
		return nil, errors.New("crawler: checkpoint store is nil")
	}
	if out == nil {
		out = output.NewManager()
	}
	if cfg == nil {
		return nil, errors.New("crawler: config is nil")
	}
	return &Crawler{
		client:   client,
		governor: governor,
		store:    store,
		out:      out,
		resolver: NewMergeResolver(client),
		mode:     mode,
		maxAge:   cfg.Staleness.MaxAge,
		pacing:   cfg.Pacing,
		now:      time.Now,
		sleep:    sleepCtx,
	}, nil
}

// ProcessRepo crawls one repository to its terminal status. Partial progress
// is checkpointed continuously, so an interruption loses at most one page
// fetch or one branch classification.
func (c *Crawler) ProcessRepo(ctx context.Context, doc map[string]*checkpoint.RepoCheckpoint, task RepoTask) (int, RepoStatus) {
	full := task.FullName()
	cp := doc[full]
	if cp == nil {
		cp = checkpoint.NewRepoCheckpoint()
		doc[full] = cp
	}
	if cp.ProcessedBranches == nil {
		cp.ProcessedBranches = checkpoint.NewStringSet()
	}

	c.governor.EnsureCapacity(ctx)

	defaultBranch := c.defaultBranch(ctx, task)

	branches, status := c.enumerate(ctx, task, cp, doc)
	if status != StatusCompleted {
		return c.staleSoFar(cp), status
	}
	if cp.TotalBranches == 0 {
		cp.TotalBranches = len(branches) + cp.ProcessedBranches.Len()
	}

	c.classify(ctx, task, cp, doc, branches, defaultBranch)
	return c.staleSoFar(cp), StatusCompleted
}

func (c *Crawler) staleSoFar(cp *checkpoint.RepoCheckpoint) int {
	if c.mode == config.ModeDetail {
		return len(cp.StaleBranches)
	}
	return cp.StaleCount
}

// defaultBranch resolves the repository's primary branch, which is never
// reported stale. Failures degrade to a common guess rather than aborting.
func (c *Crawler) defaultBranch(ctx context.Context, task RepoTask) string {
	repo, _, err := c.client.Client.Repositories.Get(ctx, task.Owner, task.Name)
	if err != nil || repo.GetDefaultBranch() == "" {
		c.say("%s: could not resolve default branch, assuming %q", task.FullName(), fallbackDefaultBranch)
		return fallbackDefaultBranch
	}
	return repo.GetDefaultBranch()
}

// saveDoc persists the checkpoint document. A write failure is a degraded
// mode, not a stop: the run continues with in-memory state at risk.
func (c *Crawler) saveDoc(doc map[string]*checkpoint.RepoCheckpoint) {
	if err := c.store.Save(doc); err != nil {
		c.say("checkpoint save failed (continuing with in-memory state): %v", err)
	}
}

func (c *Crawler) say(format string, args ...any) {
	_ = c.out.Emitf(format, args...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
