package engine

import (
	"context"
	"fmt"

	"github.com/google/go-github/v81/github"

	"github.com/scarlettk3/Stale-Data-Collection/internal/fetcher"
	gh "github.com/scarlettk3/Stale-Data-Collection/internal/github"
	"github.com/scarlettk3/Stale-Data-Collection/internal/output"
)

// InventoryRow is one repository of a team's branch inventory.
type InventoryRow struct {
	Repository    string
	TotalBranches int
}

// BuildInventory lists every repository a team has access to and counts its
// branches by pagination. The result seeds the count pass: its rows become
// the inventory CSV that LoadInventory consumes.
//
// Unlike the crawl commands there is no checkpointing here; a team listing
// is cheap enough to redo from scratch.
func BuildInventory(ctx context.Context, client *gh.Client, governor *fetcher.Governor, out *output.Manager, org, team string) ([]InventoryRow, error) {
	if out == nil {
		out = output.NewManager()
	}
	repos, err := listTeamRepos(ctx, client, org, team)
	if err != nil {
		return nil, err
	}
	_ = out.Emitf("found %d repositories for team %s/%s", len(repos), org, team)

	governor.EnsureCapacity(ctx)

	rows := make([]InventoryRow, 0, len(repos))
	for i, repo := range repos {
		if ctx.Err() != nil {
			return rows, ctx.Err()
		}
		count, err := countBranches(ctx, client, repo.GetOwner().GetLogin(), repo.GetName())
		if err != nil {
			// One broken repository must not sink the inventory.
			_ = out.Emitf("%s: counting branches failed: %v", repo.GetFullName(), err)
			continue
		}
		rows = append(rows, InventoryRow{Repository: repo.GetName(), TotalBranches: count})
		_ = out.Emitf("processed %d/%d: %s (%d branches)", i+1, len(repos), repo.GetName(), count)
	}
	return rows, nil
}

func listTeamRepos(ctx context.Context, client *gh.Client, org, team string) ([]*github.Repository, error) {
	var repos []*github.Repository
	opts := &github.ListOptions{PerPage: branchPageSize}
	for {
		page, resp, err := client.Client.Teams.ListTeamReposBySlug(ctx, org, team, opts)
		if err != nil {
			return nil, fmt.Errorf("list repositories for team %s/%s: %w", org, team, err)
		}
		repos = append(repos, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

// countBranches pages through a repository's branches and counts them. A
// short page ends the walk early; an empty page is the hard stop.
func countBranches(ctx context.Context, client *gh.Client, owner, name string) (int, error) {
	total := 0
	page := 1
	for {
		opts := &github.BranchListOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: branchPageSize},
		}
		branches, _, err := client.Client.Repositories.ListBranches(ctx, owner, name, opts)
		if err != nil {
			return total, err
		}
		total += len(branches)
		if len(branches) < branchPageSize {
			return total, nil
		}
		page++
	}
}
