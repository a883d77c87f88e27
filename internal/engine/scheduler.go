package engine

import (
	"context"
	"errors"
	"time"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	"github.com/scarlettk3/Stale-Data-Collection/internal/output"
)

// Summary is the final accounting of a crawl run.
type Summary struct {
	ReposPlanned int
	ReposCrawled int
	ReposSkipped int

	// StaleTotal sums stale branches across every repository on the work
	// list, including ones resolved from checkpoint cache.
	StaleTotal int

	// Statuses maps fully-qualified repository names to their outcome.
	Statuses map[string]RepoStatus

	// ReportPending lists repositories still flagged as needing a report
	// regeneration after the final retry pass.
	ReportPending []string
}

// Failures counts repositories that did not reach a completed state.
func (s *Summary) Failures() int {
	n := 0
	for _, status := range s.Statuses {
		if !status.Completed() {
			n++
		}
	}
	return n
}

// Scheduler drives the crawler across the work list in fixed-size batches.
// Within a batch repositories run strictly sequentially with a short pause
// between them; batches are separated by a longer pause and a mandatory
// governor check. The two-tier pacing bounds worst-case burst size, since
// branch and commit fetches are bursty per repository while the quota is
// shared across the whole run.
type Scheduler struct {
	crawler *Crawler
	store   *checkpoint.Store
	out     *output.Manager
	cfg     *config.Config
	mode    config.Mode

	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(crawler *Crawler, store *checkpoint.Store, out *output.Manager, cfg *config.Config, mode config.Mode) (*Scheduler, error) {
	if crawler == nil {
		return nil, errors.New("scheduler: crawler is nil")
	}
	if store == nil {
		return nil, errors.New("scheduler: checkpoint store is nil")
	}
	if out == nil {
		out = output.NewManager()
	}
	if cfg == nil {
		return nil, errors.New("scheduler: config is nil")
	}
	return &Scheduler{
		crawler: crawler,
		store:   store,
		out:     out,
		cfg:     cfg,
		mode:    mode,
		sleep:   sleepCtx,
	}, nil
}

// Run processes the work list to completion. Failures are contained at the
// repository level and recorded in the summary; the only errors returned
// are context cancellation and report-write problems at the very end.
func (s *Scheduler) Run(ctx context.Context, tasks []RepoTask) (*Summary, error) {
	doc := s.store.Load()

	pending, skipped := FilterPending(tasks, doc, s.mode)
	summary := &Summary{
		ReposPlanned: len(tasks),
		ReposSkipped: len(skipped),
		Statuses:     make(map[string]RepoStatus, len(tasks)),
	}
	for _, task := range skipped {
		summary.Statuses[task.FullName()] = StatusSkipped
		_ = s.out.Emit(output.Event{Type: output.EventRepoSkipped, Repo: task.FullName()})
	}
	_ = s.out.Emit(output.Event{Type: output.EventRunStarted, Repos: len(pending)})

	batchSize := s.cfg.Pacing.BatchSize
	if batchSize <= 0 {
		batchSize = len(pending)
	}
	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		batch := pending[start:end]

		for i, task := range batch {
			if ctx.Err() != nil {
				s.finish(summary, tasks, doc)
				return summary, ctx.Err()
			}
			_ = s.out.Emit(output.Event{Type: output.EventRepoStarted, Repo: task.FullName()})

			stale, status := s.crawler.ProcessRepo(ctx, doc, task)
			summary.Statuses[task.FullName()] = status
			summary.ReposCrawled++
			_ = s.out.Emit(output.Event{
				Type:   output.EventRepoFinished,
				Repo:   task.FullName(),
				Status: string(status),
				Stale:  stale,
			})

			s.writeReports(tasks, doc, summary, task)

			if i < len(batch)-1 {
				if err := s.sleep(ctx, s.cfg.Pacing.RepoBreak); err != nil {
					s.finish(summary, tasks, doc)
					return summary, err
				}
				s.crawler.governor.EnsureCapacity(ctx)
			}
		}

		if end < len(pending) {
			_ = s.out.Emitf("completed batch of %d repositories, taking a %s break", len(batch), s.cfg.Pacing.BatchBreak)
			if err := s.sleep(ctx, s.cfg.Pacing.BatchBreak); err != nil {
				s.finish(summary, tasks, doc)
				return summary, err
			}
			s.crawler.governor.EnsureCapacity(ctx)
		}
	}

	s.finish(summary, tasks, doc)
	_ = s.out.Emit(output.Event{Type: output.EventRunFinished, Repos: summary.ReposCrawled, Stale: summary.StaleTotal})
	return summary, nil
}

// writeReports rewrites the run's output files from checkpoint state after
// each repository. A write failure flags the repository's checkpoint so a
// later pass can regenerate the report, and never interrupts the crawl.
func (s *Scheduler) writeReports(tasks []RepoTask, doc map[string]*checkpoint.RepoCheckpoint, summary *Summary, current RepoTask) {
	if err := s.renderReports(tasks, doc, summary); err != nil {
		_ = s.out.Emitf("writing report failed for %s (will retry at end of run): %v", current.FullName(), err)
		if cp := doc[current.FullName()]; cp != nil {
			cp.NeedsReportUpdate = true
			s.crawler.saveDoc(doc)
		}
	}
}

func (s *Scheduler) renderReports(tasks []RepoTask, doc map[string]*checkpoint.RepoCheckpoint, summary *Summary) error {
	switch s.mode {
	case config.ModeDetail:
		if s.cfg.Output.Out != "" {
			rows := detailRows(tasks, doc)
			if err := output.WriteDetailReport(s.cfg.Output.Out, rows); err != nil {
				return err
			}
		}
		if s.cfg.Output.Index != "" {
			if err := output.WriteIndexReport(s.cfg.Output.Index, s.indexRows(tasks, doc, summary)); err != nil {
				return err
			}
		}
	case config.ModeCount:
		if s.cfg.Output.Out != "" {
			if err := output.WriteIndexReport(s.cfg.Output.Out, s.indexRows(tasks, doc, summary)); err != nil {
				return err
			}
		}
	}
	return nil
}

func detailRows(tasks []RepoTask, doc map[string]*checkpoint.RepoCheckpoint) []output.ReportRow {
	var rows []output.ReportRow
	for _, task := range tasks {
		cp := doc[task.FullName()]
		if cp == nil {
			continue
		}
		for _, sb := range cp.StaleBranches {
			rows = append(rows, output.ReportRow{
				Repository:     task.FullName(),
				Branch:         sb.BranchName,
				LastCommitDate: sb.LastCommitDate,
				LastMergedTo:   sb.LastMergedTo.Label(),
			})
		}
	}
	return rows
}

func (s *Scheduler) indexRows(tasks []RepoTask, doc map[string]*checkpoint.RepoCheckpoint, summary *Summary) []output.IndexRow {
	rows := make([]output.IndexRow, 0, len(tasks))
	for _, task := range tasks {
		cp := doc[task.FullName()]
		row := output.IndexRow{Repository: task.Name}
		if task.BranchCount >= 0 {
			row.TotalBranches = task.BranchCount
		}
		if cp != nil {
			if row.TotalBranches == 0 {
				row.TotalBranches = cp.TotalBranches
			}
			if s.mode == config.ModeDetail {
				row.StaleBranches = len(cp.StaleBranches)
			} else {
				row.StaleBranches = cp.StaleCount
			}
		}
		if status, ok := summary.Statuses[task.FullName()]; ok {
			row.Status = string(status)
		}
		rows = append(rows, row)
	}
	return rows
}

// finish totals stale findings, retries flagged report writes, and records
// what is still pending.
func (s *Scheduler) finish(summary *Summary, tasks []RepoTask, doc map[string]*checkpoint.RepoCheckpoint) {
	for _, task := range tasks {
		cp := doc[task.FullName()]
		if cp == nil {
			continue
		}
		if s.mode == config.ModeDetail {
			summary.StaleTotal += len(cp.StaleBranches)
		} else {
			summary.StaleTotal += cp.StaleCount
		}
	}

	var flagged []string
	for _, task := range tasks {
		if cp := doc[task.FullName()]; cp != nil && cp.NeedsReportUpdate {
			flagged = append(flagged, task.FullName())
		}
	}
	if len(flagged) == 0 {
		return
	}

	_ = s.out.Emitf("retrying report generation for %d repositories", len(flagged))
	if err := s.renderReports(tasks, doc, summary); err != nil {
		_ = s.out.Emitf("report regeneration failed: %v", err)
		summary.ReportPending = flagged
		return
	}
	for _, full := range flagged {
		doc[full].NeedsReportUpdate = false
	}
	s.crawler.saveDoc(doc)
}
