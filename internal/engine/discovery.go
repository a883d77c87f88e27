package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
)

// Inventory CSV columns. The inventory command writes the first two; the
// count command appends the third, which the audit command requires.
const (
	colRepository  = "repository_name"
	colBranchCount = "number_of_branches"
	colStaleCount  = "Stale_Branches"
)

// RepoTask is one repository on the work list.
type RepoTask struct {
	Owner string
	Name  string

	// BranchCount is the inventory's branch total. Zero-branch repositories
	// are resolved without any network activity.
	BranchCount int

	// ExpectedStale is the stale-branch target from a prior count pass.
	// The detail crawl stops early once this many stale records exist.
	ExpectedStale int
}

func (t RepoTask) FullName() string { return t.Owner + "/" + t.Name }

// LoadInventory reads the repository work list from an inventory CSV. Column
// validation happens here, before any network activity: a missing required
// column is the one globally fatal condition of a run.
func LoadInventory(path, owner string, mode config.Mode) ([]RepoTask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read inventory header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	required := []string{colRepository, colBranchCount}
	if mode == config.ModeDetail {
		required = append(required, colStaleCount)
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("inventory %s is missing required columns: %s (have: %s)",
			path, strings.Join(missing, ", "), strings.Join(header, ", "))
	}

	var tasks []RepoTask
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read inventory row %d: %w", line, err)
		}
		task := RepoTask{Owner: owner}
		task.Name = strings.TrimSpace(field(rec, cols[colRepository]))
		if task.Name == "" {
			continue
		}
		if task.BranchCount, err = parseCount(field(rec, cols[colBranchCount])); err != nil {
			return nil, fmt.Errorf("inventory row %d (%s): %s: %w", line, task.Name, colBranchCount, err)
		}
		if mode == config.ModeDetail {
			if task.ExpectedStale, err = parseCount(field(rec, cols[colStaleCount])); err != nil {
				return nil, fmt.Errorf("inventory row %d (%s): %s: %w", line, task.Name, colStaleCount, err)
			}
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// parseCount tolerates the blank and error placeholders a partially
// completed prior run leaves behind, treating them as zero.
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "error") {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count: %d", n)
	}
	return n, nil
}

// TasksFromRepos builds the work list from an explicit repository list,
// bypassing the inventory file. Entries are either NAME (owned by the
// configured organization) or OWNER/NAME. Without inventory counts the crawl
// cannot early-exit, so counts are marked unknown and every branch is
// enumerated and classified.
func TasksFromRepos(owner string, repos []string) ([]RepoTask, error) {
	tasks := make([]RepoTask, 0, len(repos))
	for _, entry := range repos {
		task := RepoTask{Owner: owner, Name: entry, BranchCount: -1, ExpectedStale: -1}
		if before, after, found := strings.Cut(entry, "/"); found {
			task.Owner, task.Name = before, after
		}
		if task.Owner == "" || task.Name == "" || strings.Contains(task.Name, "/") {
			return nil, fmt.Errorf("invalid repository %q (want NAME or OWNER/NAME)", entry)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// FilterPending drops repositories whose checkpoint already marks them
// complete, so idempotent re-runs are cheap. Zero-branch (count mode) and
// zero-expected-stale (detail mode) repositories are also resolved here
// without network activity.
func FilterPending(tasks []RepoTask, doc map[string]*checkpoint.RepoCheckpoint, mode config.Mode) (pending, skipped []RepoTask) {
	for _, task := range tasks {
		cp := doc[task.FullName()]
		switch mode {
		case config.ModeCount:
			if task.BranchCount == 0 || cp.CountComplete() {
				skipped = append(skipped, task)
				continue
			}
		case config.ModeDetail:
			if task.ExpectedStale == 0 || cp.DetailComplete(task.ExpectedStale) {
				skipped = append(skipped, task)
				continue
			}
		}
		pending = append(pending, task)
	}
	return pending, skipped
}
