package output

import (
	"errors"
	"testing"

	"github.com/scarlettk3/Stale-Data-Collection/internal/checkpoint"
)

type recordingSink struct {
	events []Event
	closed bool
	fail   bool
}

func (s *recordingSink) Emit(ev Event) error {
	if s.fail {
		return errors.New("sink broken")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestManagerFanOut(t *testing.T) {
	m := NewManager()
	a := &recordingSink{}
	b := &recordingSink{}
	if err := m.AddSink(a); err != nil {
		t.Fatalf("AddSink failed: %v", err)
	}
	if err := m.AddSink(b); err != nil {
		t.Fatalf("AddSink failed: %v", err)
	}

	ev := Event{Type: EventRepoStarted, Repo: "acme/repo"}
	if err := m.Emit(ev); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("events not fanned out: a=%d b=%d", len(a.events), len(b.events))
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.closed || !b.closed {
		t.Error("sinks not closed")
	}
}

func TestManagerCollectsSinkErrors(t *testing.T) {
	m := NewManager()
	ok := &recordingSink{}
	broken := &recordingSink{fail: true}
	_ = m.AddSink(broken)
	_ = m.AddSink(ok)

	err := m.Emit(Event{Type: EventRunStarted, Repos: 1})
	if err == nil {
		t.Fatal("expected error from broken sink")
	}
	// The healthy sink still received the event.
	if len(ok.events) != 1 {
		t.Errorf("healthy sink got %d events, want 1", len(ok.events))
	}
}

func TestManagerRejectsNilSink(t *testing.T) {
	m := NewManager()
	if err := m.AddSink(nil); err == nil {
		t.Fatal("expected error for nil sink")
	}
}

func sampleRecord() *checkpoint.StaleBranch {
	return &checkpoint.StaleBranch{
		BranchName:     "feat-a",
		LastCommitDate: "2025-01-02 03:04:05",
		LastMergedTo:   checkpoint.TargetBranch("main"),
	}
}
