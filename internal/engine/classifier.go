package engine

import (
	"context"

	"github.com/google/go-github/v81/github"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	gh "github.com/scarlettk3/Stale-Data-Collection/internal/github"
	"github.com/scarlettk3/Stale-Data-Collection/internal/output"
)

// commitDateLayout renders classified commit times for reports.
const commitDateLayout = "2006-01-02 15:04:05"

// classify evaluates every not-yet-processed branch. A branch enters
// ProcessedBranches exactly once, after its evaluation completes or is
// explicitly skipped; a branch whose tip commit could not be fetched is NOT
// marked, so the next run retries it. Work proceeds in chunks with a pause
// and a governor check between chunks, since commit fetches are the
// dominant quota consumer on large repositories.
func (c *Crawler) classify(ctx context.Context, task RepoTask, cp *checkpoint.RepoCheckpoint, doc map[string]*checkpoint.RepoCheckpoint, branches []*github.Branch, defaultBranch string) {
	pending := make([]*github.Branch, 0, len(branches))
	for _, b := range branches {
		if !cp.ProcessedBranches.Has(b.GetName()) {
			pending = append(pending, b)
		}
	}
	if len(pending) == 0 {
		return
	}
	c.say("%s: classifying %d branches (%d already processed)", task.FullName(), len(pending), cp.ProcessedBranches.Len())

	chunkSize := c.pacing.ChunkSize
	if chunkSize <= 0 {
		chunkSize = len(pending)
	}
	for start := 0; start < len(pending); start += chunkSize {
		end := min(start+chunkSize, len(pending))
		for _, branch := range pending[start:end] {
			if ctx.Err() != nil {
				return
			}
			if done := c.classifyBranch(ctx, task, cp, doc, branch, defaultBranch); done {
				return
			}
		}
		if end < len(pending) {
			if err := c.sleep(ctx, c.pacing.ChunkBreak); err != nil {
				return
			}
			c.governor.EnsureCapacity(ctx)
		}
	}
}

// classifyBranch evaluates one branch. The returned flag signals detail-mode
// early termination: the accumulated stale records already cover the
// externally supplied target, so the rest of the repository is skipped this
// run.
func (c *Crawler) classifyBranch(ctx context.Context, task RepoTask, cp *checkpoint.RepoCheckpoint, doc map[string]*checkpoint.RepoCheckpoint, branch *github.Branch, defaultBranch string) bool {
	name := branch.GetName()

	// The primary branch is never stale. Processed without lookups.
	if name == defaultBranch {
		cp.ProcessedBranches.Add(name)
		c.saveDoc(doc)
		return false
	}

	commit, _, err := c.client.Client.Repositories.GetCommit(ctx, task.Owner, task.Name, branch.GetCommit().GetSHA(), nil)
	if err != nil {
		// Not marked processed; the next run reattempts this branch.
		c.say("%s: fetching tip commit of %s failed: %v", task.FullName(), name, err)
		return false
	}

	when := commit.GetCommit().GetCommitter().GetDate()
	if when.IsZero() {
		// Marked processed so a permanently broken commit cannot wedge
		// the crawl.
		perr := &gh.ParseError{Resource: "commit " + branch.GetCommit().GetSHA(), Detail: "missing or malformed committer date"}
		c.say("%s: skipping branch %s: %v", task.FullName(), name, perr)
		cp.ProcessedBranches.Add(name)
		c.saveDoc(doc)
		return false
	}

	if c.now().Sub(when.Time) > c.maxAge {
		if c.mode == config.ModeDetail {
			record := checkpoint.StaleBranch{
				BranchName:     name,
				LastCommitDate: when.UTC().Format(commitDateLayout),
				LastMergedTo:   c.resolver.Resolve(ctx, task.Owner, task.Name, name, defaultBranch),
			}
			cp.StaleBranches = append(cp.StaleBranches, record)
			_ = c.out.Emit(output.Event{Type: output.EventBranchStale, Repo: task.FullName(), Record: &record})
			c.saveDoc(doc)
			if cp.DetailComplete(task.ExpectedStale) {
				c.say("%s: reached expected stale count (%d), stopping", task.FullName(), task.ExpectedStale)
				return true
			}
		} else {
			cp.StaleCount++
		}
	}

	cp.ProcessedBranches.Add(name)
	c.saveDoc(doc)
	return false
}
