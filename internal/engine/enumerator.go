package engine

import (
	"context"

	"github.com/google/go-github/v81/github"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	gh "github.com/scarlettk3/Stale-Data-Collection/internal/github"
	"github.com/scarlettk3/Stale-Data-Collection/internal/output"
)

// enumerate pages through the repository's branches, resuming at the page
// after the last fully fetched one. Each fetched page advances the
// checkpoint and triggers a governor check; an empty page terminates the
// walk. In detail mode the walk also stops once the expected stale count is
// already satisfied, trading a possibly undercounted branch total for fewer
// quota-heavy fetches.
//
// Names recorded in ProcessedBranches survive a restart; fetched branch
// objects do not, so a resumed run sees only the pages it fetches itself.
// Earlier pages are not re-fetched, matching the checkpoint contract.
func (c *Crawler) enumerate(ctx context.Context, task RepoTask, cp *checkpoint.RepoCheckpoint, doc map[string]*checkpoint.RepoCheckpoint) ([]*github.Branch, RepoStatus) {
	page := cp.PagesProcessed + 1
	if cp.PagesProcessed > 0 {
		c.say("%s: resuming from page %d", task.FullName(), page)
	}

	var branches []*github.Branch
	for {
		opts := &github.BranchListOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: branchPageSize},
		}
		pageBranches, _, err := c.client.Client.Repositories.ListBranches(ctx, task.Owner, task.Name, opts)
		switch {
		case err == nil:
		case gh.IsNotFound(err):
			c.say("%s: repository not found", task.FullName())
			return branches, StatusRepoNotFound
		case gh.IsTransport(err):
			c.say("%s: listing branches failed after retries: %v", task.FullName(), err)
			return branches, StatusConnectionError
		default:
			c.say("%s: error listing branches (page %d): %v", task.FullName(), page, err)
			return branches, StatusError
		}
		if len(pageBranches) == 0 {
			break
		}

		branches = append(branches, pageBranches...)
		_ = c.out.Emit(output.Event{
			Type:     output.EventPageFetched,
			Repo:     task.FullName(),
			Page:     page,
			Branches: len(pageBranches),
		})

		cp.PagesProcessed = page
		c.saveDoc(doc)
		page++

		c.governor.EnsureCapacity(ctx)

		if c.mode == config.ModeDetail && cp.DetailComplete(task.ExpectedStale) {
			c.say("%s: found %d stale branches already, stopping enumeration", task.FullName(), len(cp.StaleBranches))
			break
		}
		if ctx.Err() != nil {
			return branches, StatusConnectionError
		}
	}
	return branches, StatusCompleted
}
