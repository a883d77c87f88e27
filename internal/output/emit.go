package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
)

// EmitSink writes structured output streams.
//
// Formats:
//   - json: aggregates stale-branch records and writes a single JSON array on Close
//   - ndjson: streams every Event (one JSON object per line)
type EmitSink struct {
	writer  io.Writer
	format  string // "json" | "ndjson"
	mu      sync.Mutex
	records []recordRow
}

type recordRow struct {
	Repo string `json:"repo"`
	checkpoint.StaleBranch
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported emit format: %s", format)
	}
	return &EmitSink{writer: w, format: format}, nil
}

func (s *EmitSink) Emit(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		// Only findings matter in JSON aggregate mode; lifecycle noise is dropped.
		if ev.Type == EventBranchStale && ev.Record != nil {
			s.records = append(s.records, recordRow{Repo: ev.Repo, StaleBranch: *ev.Record})
		}
		return nil
	case "ndjson":
		if err := json.NewEncoder(s.writer).Encode(ev); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported emit format: %s", s.format)
	}
}

func (s *EmitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.records); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	return nil
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	return f.Flush()
}
