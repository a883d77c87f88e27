package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ReportRow is one line of the row-oriented stale-branch report.
type ReportRow struct {
	Repository     string
	Branch         string
	LastCommitDate string
	LastMergedTo   string
}

// IndexRow is one line of the cross-repository index.
type IndexRow struct {
	Repository    string
	TotalBranches int
	StaleBranches int
	Status        string
}

// WriteDetailReport rewrites the detail CSV in full. Reports are regenerated
// from checkpoint state, so a full rewrite keeps them consistent with the
// single source of truth instead of appending possibly-duplicated rows.
func WriteDetailReport(path string, rows []ReportRow) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"repository", "branch", "last_commit_date", "last_merged_to"}); err != nil {
			return err
		}
		for _, r := range rows {
			if err := w.Write([]string{r.Repository, r.Branch, r.LastCommitDate, r.LastMergedTo}); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteIndexReport rewrites the cross-repository index CSV.
func WriteIndexReport(path string, rows []IndexRow) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"repository_name", "number_of_branches", "Stale_Branches", "status"}); err != nil {
			return err
		}
		for _, r := range rows {
			rec := []string{r.Repository, strconv.Itoa(r.TotalBranches), strconv.Itoa(r.StaleBranches), r.Status}
			if err := w.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path string, fill func(w *csv.Writer) error) error {
	if path == "" {
		return fmt.Errorf("report path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteInventoryReport rewrites the branch inventory CSV. Its columns are
// exactly the required input columns of the downstream count pass.
func WriteInventoryReport(path string, repos []string, counts []int) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write([]string{"repository_name", "number_of_branches"}); err != nil {
			return err
		}
		for i, repo := range repos {
			count := 0
			if i < len(counts) {
				count = counts[i]
			}
			if err := w.Write([]string{repo, strconv.Itoa(count)}); err != nil {
				return err
			}
		}
		return nil
	})
}

// RenderIndexTable prints the index as a console grid.
func RenderIndexTable(w io.Writer, rows []IndexRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Repository", "Branches", "Stale", "Status"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Repository, r.TotalBranches, r.StaleBranches, r.Status})
	}
	t.Render()
}

// RenderInventoryTable prints repository branch counts as a console grid.
func RenderInventoryTable(w io.Writer, repos []string, counts []int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Repository", "Total Branches"})
	for i, repo := range repos {
		count := 0
		if i < len(counts) {
			count = counts[i]
		}
		t.AppendRow(table.Row{repo, count})
	}
	t.Render()
}
