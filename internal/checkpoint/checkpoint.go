package checkpoint

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MergeTargetKind distinguishes a resolved merge target from the two
// non-answers: "no evidence found" and "the tooling failed while looking".
// Downstream reporting must not conflate the two.
type MergeTargetKind int

const (
	// MergeTargetUnknown means every resolution step was inconclusive.
	MergeTargetUnknown MergeTargetKind = iota
	// MergeTargetBranch carries the resolved target branch name.
	MergeTargetBranch
	// MergeTargetErrored means resolution aborted on a tooling fault.
	MergeTargetErrored
)

// MergeTarget is the outcome of the merge-target resolution chain. The zero
// value is Unknown. Resolved values are best-effort: the commit-message
// heuristics can misattribute targets on repositories with nonstandard merge
// conventions, and no step validates the answer against actual history.
type MergeTarget struct {
	Kind   MergeTargetKind
	Branch string
}

func TargetBranch(name string) MergeTarget {
	return MergeTarget{Kind: MergeTargetBranch, Branch: name}
}

func TargetUnknown() MergeTarget { return MergeTarget{Kind: MergeTargetUnknown} }

func TargetErrored() MergeTarget { return MergeTarget{Kind: MergeTargetErrored} }

const (
	labelUnknown = "Unknown"
	labelErrored = "Error"
)

// Label renders the target the way reports print it.
func (t MergeTarget) Label() string {
	switch t.Kind {
	case MergeTargetBranch:
		return t.Branch
	case MergeTargetErrored:
		return labelErrored
	default:
		return labelUnknown
	}
}

// MarshalJSON keeps the on-disk checkpoint format a plain string, so
// checkpoints interoperate with downstream spreadsheet tooling.
func (t MergeTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Label())
}

func (t *MergeTarget) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("merge target: %w", err)
	}
	switch s {
	case labelUnknown:
		*t = TargetUnknown()
	case labelErrored:
		*t = TargetErrored()
	default:
		*t = TargetBranch(s)
	}
	return nil
}

// StaleBranch is one stale-branch finding. Created once, immutable
// thereafter; its lifetime is that of its repository's checkpoint entry.
type StaleBranch struct {
	BranchName string `json:"branch_name"`
	// LastCommitDate is UTC at second precision, "2006-01-02 15:04:05".
	LastCommitDate string      `json:"last_commit_date"`
	LastMergedTo   MergeTarget `json:"last_merged_to"`
}

// StringSet is a membership-only branch-name set that serializes as a sorted
// JSON array, keeping checkpoint rewrites deterministic.
type StringSet map[string]struct{}

func NewStringSet(names ...string) StringSet {
	s := make(StringSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

func (s StringSet) Add(name string) { s[name] = struct{}{} }

func (s StringSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s StringSet) Len() int { return len(s) }

func (s StringSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return json.Marshal(names)
}

func (s *StringSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("processed branches: %w", err)
	}
	*s = NewStringSet(names...)
	return nil
}

// RepoCheckpoint records one repository's crawl progress. It is append-only
// per branch: once a name enters ProcessedBranches it is never reclassified,
// and in-memory state is always reducible to the persisted form.
type RepoCheckpoint struct {
	// PagesProcessed counts branch-listing pages fully fetched; resuming
	// starts at PagesProcessed+1.
	PagesProcessed int `json:"pages_processed"`

	// ProcessedBranches holds names already classified or explicitly skipped.
	ProcessedBranches StringSet `json:"processed_branches"`

	// StaleBranches accumulates detail-mode findings.
	StaleBranches []StaleBranch `json:"stale_branches_info,omitempty"`

	// StaleCount accumulates count-mode findings.
	StaleCount int `json:"stale_count"`

	// TotalBranches caches the branch count once enumeration completed.
	// May undercount when detail-mode early exit stopped paging.
	TotalBranches int `json:"total_branches,omitempty"`

	// NeedsReportUpdate is a sticky flag set when report generation for the
	// repository failed; cleared only on successful regeneration.
	NeedsReportUpdate bool `json:"needs_report_update,omitempty"`
}

func NewRepoCheckpoint() *RepoCheckpoint {
	return &RepoCheckpoint{ProcessedBranches: NewStringSet()}
}

// CountComplete reports whether the count-only pass finished: every branch of
// a fully enumerated repository has been classified.
func (c *RepoCheckpoint) CountComplete() bool {
	if c == nil || c.TotalBranches == 0 {
		return false
	}
	return c.ProcessedBranches.Len() >= c.TotalBranches
}

// DetailComplete reports whether the detail pass can stop early: the
// accumulated stale records already cover the externally supplied target.
func (c *RepoCheckpoint) DetailComplete(expectedStale int) bool {
	if c == nil || expectedStale <= 0 {
		return false
	}
	return len(c.StaleBranches) >= expectedStale
}
