package engine

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/go-github/v81/github"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
	gh "github.com/scarlettk3/Stale-Data-Collection/internal/github"
)

// mergePattern matches one common merge-commit message shape. The capture
// group holding the target branch differs per shape.
type mergePattern struct {
	re    *regexp.Regexp
	group int
}

var mergePatterns = []mergePattern{
	{regexp.MustCompile(`Merge (?:pull request|PR) #\d+ .*?into (\S+)`), 1},
	{regexp.MustCompile(`Merge branch '?([^']+)'? into ([^\s']+)`), 2},
	{regexp.MustCompile(`Merge '?([^']+)'? into ([^\s']+)`), 2},
	{regexp.MustCompile(`merged \d+ commit\(s\) into (\S+) from`), 1},
	{regexp.MustCompile(`from .* into (\S+)`), 1},
}

// maxMergeCommits bounds how many commit-search hits are scanned for a
// recognizable merge message.
const maxMergeCommits = 3

// MergeResolver answers "where was this branch last merged to" through an
// ordered fallback chain. Resolved targets are best-effort: the
// commit-message patterns are heuristic and nothing validates a match
// against actual history.
type MergeResolver struct {
	client *gh.Client
}

func NewMergeResolver(client *gh.Client) *MergeResolver {
	return &MergeResolver{client: client}
}

// Resolve walks the chain, each step attempted only when the prior one
// yields nothing:
//
//  1. the most recent merged pull request whose head is the branch; its base
//     branch wins outright over any commit-message evidence;
//  2. commit-search hits mentioning a merge of the branch, scanned against
//     the known merge-message shapes;
//  3. any commit mentioning both the branch and the default branch, taken
//     as circumstantial evidence of a merge into the default branch.
//
// An inconclusive chain returns Unknown. A transport fault aborts the chain
// with Errored, which downstream reporting keeps distinct from Unknown: one
// is an absence of evidence, the other a tooling failure. HTTP-level
// failures on individual steps fall through to the next step instead,
// because search endpoints reject some queries that later steps can still
// answer.
func (r *MergeResolver) Resolve(ctx context.Context, owner, repo, branch, defaultBranch string) checkpoint.MergeTarget {
	if target, err := r.fromMergedPullRequest(ctx, owner, repo, branch); err != nil {
		if !stepRecoverable(err) {
			return checkpoint.TargetErrored()
		}
	} else if target != "" {
		return checkpoint.TargetBranch(target)
	}

	if target, err := r.fromMergeCommitMessage(ctx, owner, repo, branch); err != nil {
		if !stepRecoverable(err) {
			return checkpoint.TargetErrored()
		}
	} else if target != "" {
		return checkpoint.TargetBranch(target)
	}

	if defaultBranch != "" {
		if merged, err := r.mentionedWithDefault(ctx, owner, repo, branch, defaultBranch); err != nil {
			if !stepRecoverable(err) {
				return checkpoint.TargetErrored()
			}
		} else if merged {
			return checkpoint.TargetBranch(defaultBranch)
		}
	}

	return checkpoint.TargetUnknown()
}

func (r *MergeResolver) fromMergedPullRequest(ctx context.Context, owner, repo, branch string) (string, error) {
	query := fmt.Sprintf("repo:%s/%s head:%s is:pr is:merged", owner, repo, branch)
	res, _, err := r.client.Client.Search.Issues(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return "", err
	}
	if res.GetTotal() == 0 || len(res.Issues) == 0 {
		return "", nil
	}
	pr, _, err := r.client.Client.PullRequests.Get(ctx, owner, repo, res.Issues[0].GetNumber())
	if err != nil {
		return "", err
	}
	return pr.GetBase().GetRef(), nil
}

func (r *MergeResolver) fromMergeCommitMessage(ctx context.Context, owner, repo, branch string) (string, error) {
	query := fmt.Sprintf("repo:%s/%s merge %s", owner, repo, branch)
	res, _, err := r.client.Client.Search.Commits(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: maxMergeCommits},
	})
	if err != nil {
		return "", err
	}
	for i, hit := range res.Commits {
		if i >= maxMergeCommits {
			break
		}
		message := hit.GetCommit().GetMessage()
		for _, p := range mergePatterns {
			m := p.re.FindStringSubmatch(message)
			if m != nil && p.group < len(m) && m[p.group] != "" {
				return m[p.group], nil
			}
		}
	}
	return "", nil
}

func (r *MergeResolver) mentionedWithDefault(ctx context.Context, owner, repo, branch, defaultBranch string) (bool, error) {
	query := fmt.Sprintf("repo:%s/%s %s %s", owner, repo, branch, defaultBranch)
	res, _, err := r.client.Client.Search.Commits(ctx, query, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return false, err
	}
	return res.GetTotal() > 0, nil
}

// stepRecoverable reports whether a resolution step failed in a way the next
// step can route around. HTTP rejections (bad query, search quota) qualify;
// transport faults do not, since every later step shares the same transport.
func stepRecoverable(err error) bool {
	return err != nil && !gh.IsTransport(err)
}
