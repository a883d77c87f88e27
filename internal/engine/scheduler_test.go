package engine

import (
	"context"
	"encoding/csv"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
	"github.com/scarlettk3/Stale-Data-Collection/internal/config"
	"github.com/scarlettk3/Stale-Data-Collection/internal/fetcher"
	"github.com/scarlettk3/Stale-Data-Collection/internal/output"
)

type eventSink struct {
	mu     sync.Mutex
	events []output.Event
}

func (s *eventSink) Emit(ev output.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *eventSink) Close() error { return nil }

func (s *eventSink) ofType(kind string) []output.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []output.Event
	for _, ev := range s.events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

// twoRepoServer serves alpha (one stale branch of two) and beta (none).
func twoRepoServer(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	handleRateLimit(mux)

	oldDate := time.Now().Add(-120 * 24 * time.Hour).UTC().Format(time.RFC3339)
	newDate := time.Now().Add(-5 * 24 * time.Hour).UTC().Format(time.RFC3339)
	commit := func(date string) map[string]any {
		return map[string]any{"commit": map[string]any{"committer": map[string]any{"date": date}}}
	}

	for _, repo := range []string{"alpha", "beta"} {
		mux.HandleFunc("/repos/acme/"+repo, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"default_branch": "main"})
		})
	}
	mux.HandleFunc("/repos/acme/alpha/branches", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			writeJSON(t, w, []any{})
			return
		}
		writeJSON(t, w, []map[string]any{
			{"name": "main", "commit": map[string]any{"sha": "am"}},
			{"name": "old", "commit": map[string]any{"sha": "ao"}},
			{"name": "new", "commit": map[string]any{"sha": "an"}},
		})
	})
	mux.HandleFunc("/repos/acme/alpha/commits/ao", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, commit(oldDate))
	})
	mux.HandleFunc("/repos/acme/alpha/commits/an", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, commit(newDate))
	})
	mux.HandleFunc("/repos/acme/beta/branches", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "1" {
			writeJSON(t, w, []any{})
			return
		}
		writeJSON(t, w, []map[string]any{
			{"name": "main", "commit": map[string]any{"sha": "bm"}},
		})
	})
	return mux
}

func newTestScheduler(t *testing.T, mux *http.ServeMux, cfg *config.Config, mode config.Mode) (*Scheduler, *eventSink) {
	t.Helper()
	client := newTestClient(t, mux)
	store, err := checkpoint.NewStore(cfg.Output.Checkpoint)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	sink := &eventSink{}
	out := output.NewManager()
	if err := out.AddSink(sink); err != nil {
		t.Fatalf("AddSink failed: %v", err)
	}
	governor := fetcher.NewGovernor(client, fetcher.NewRequestBudget(), 0, 0)

	crawler, err := NewCrawler(client, governor, store, out, cfg, mode)
	if err != nil {
		t.Fatalf("NewCrawler failed: %v", err)
	}
	crawler.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	s, err := NewScheduler(crawler, store, out, cfg, mode)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	return s, sink
}

func TestSchedulerCountRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.Pacing.ChunkBreak = 0
	cfg.Output.Checkpoint = filepath.Join(dir, "checkpoint.json")
	cfg.Output.Out = filepath.Join(dir, "counts.csv")

	s, sink := newTestScheduler(t, twoRepoServer(t), cfg, config.ModeCount)

	var waits []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	tasks := []RepoTask{
		{Owner: "acme", Name: "alpha", BranchCount: 3},
		{Owner: "acme", Name: "beta", BranchCount: 1},
		{Owner: "acme", Name: "empty", BranchCount: 0},
	}
	summary, err := s.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.ReposCrawled != 2 || summary.ReposSkipped != 1 {
		t.Errorf("crawled %d skipped %d, want 2 and 1", summary.ReposCrawled, summary.ReposSkipped)
	}
	if summary.StaleTotal != 1 {
		t.Errorf("stale total = %d, want 1", summary.StaleTotal)
	}
	if summary.Failures() != 0 {
		t.Errorf("failures = %d, want 0", summary.Failures())
	}
	if got := summary.Statuses["acme/empty"]; got != StatusSkipped {
		t.Errorf("empty repo status = %q, want Skipped", got)
	}

	// Both repos fit in one batch of five, so the only pause is the
	// inter-repository break.
	if len(waits) != 1 || waits[0] != cfg.Pacing.RepoBreak {
		t.Errorf("waits = %v, want one repo break of %s", waits, cfg.Pacing.RepoBreak)
	}

	if got := len(sink.ofType(output.EventRepoFinished)); got != 2 {
		t.Errorf("repo.finished events = %d, want 2", got)
	}
	if got := len(sink.ofType(output.EventRepoSkipped)); got != 1 {
		t.Errorf("repo.skipped events = %d, want 1", got)
	}

	assertCSV(t, cfg.Output.Out, [][]string{
		{"repository_name", "number_of_branches", "Stale_Branches", "status"},
		{"alpha", "3", "1", "Completed"},
		{"beta", "1", "0", "Completed"},
		{"empty", "0", "0", "Skipped"},
	})
}

func TestSchedulerBatchPacing(t *testing.T) {
	dir := t.TempDir()
	cfg := config.New()
	cfg.Pacing.ChunkBreak = 0
	cfg.Pacing.BatchSize = 1
	cfg.Output.Checkpoint = filepath.Join(dir, "checkpoint.json")
	cfg.Output.Out = filepath.Join(dir, "counts.csv")

	s, _ := newTestScheduler(t, twoRepoServer(t), cfg, config.ModeCount)

	var waits []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	tasks := []RepoTask{
		{Owner: "acme", Name: "alpha", BranchCount: 3},
		{Owner: "acme", Name: "beta", BranchCount: 1},
	}
	if _, err := s.Run(context.Background(), tasks); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Singleton batches have no intra-batch pause; the one wait is the
	// longer inter-batch break.
	if len(waits) != 1 || waits[0] != cfg.Pacing.BatchBreak {
		t.Errorf("waits = %v, want one batch break of %s", waits, cfg.Pacing.BatchBreak)
	}
}

func TestSchedulerDetailRunWritesReports(t *testing.T) {
	mux := twoRepoServer(t)
	empty := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"total_count": 0, "items": []any{}})
	}
	mux.HandleFunc("/search/issues", empty)
	mux.HandleFunc("/search/commits", empty)

	dir := t.TempDir()
	cfg := config.New()
	cfg.Pacing.ChunkBreak = 0
	cfg.Output.Checkpoint = filepath.Join(dir, "checkpoint.json")
	cfg.Output.Out = filepath.Join(dir, "stale.csv")
	cfg.Output.Index = filepath.Join(dir, "index.csv")

	s, _ := newTestScheduler(t, mux, cfg, config.ModeDetail)
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	tasks := []RepoTask{
		{Owner: "acme", Name: "alpha", BranchCount: 3, ExpectedStale: 1},
		{Owner: "acme", Name: "beta", BranchCount: 1, ExpectedStale: 0},
	}
	summary, err := s.Run(context.Background(), tasks)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.StaleTotal != 1 {
		t.Errorf("stale total = %d, want 1", summary.StaleTotal)
	}
	if len(summary.ReportPending) != 0 {
		t.Errorf("report pending = %v, want none", summary.ReportPending)
	}

	rows := readCSV(t, cfg.Output.Out)
	if len(rows) != 2 {
		t.Fatalf("detail rows = %v, want header plus one record", rows)
	}
	if rows[1][0] != "acme/alpha" || rows[1][1] != "old" || rows[1][3] != "Unknown" {
		t.Errorf("detail row = %v", rows[1])
	}

	index := readCSV(t, cfg.Output.Index)
	if len(index) != 3 {
		t.Fatalf("index rows = %v, want header plus two", index)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func assertCSV(t *testing.T, path string, want [][]string) {
	t.Helper()
	rows := readCSV(t, path)
	if len(rows) != len(want) {
		t.Fatalf("%s has %d rows, want %d: %v", path, len(rows), len(want), rows)
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("%s row %d col %d = %q, want %q", path, i, j, rows[i][j], want[i][j])
			}
		}
	}
}
