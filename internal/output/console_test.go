package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)

	events := []Event{
		{Type: EventRunStarted, Repos: 2},
		{Type: EventRepoStarted, Repo: "acme/repo"},
		{Type: EventPageFetched, Repo: "acme/repo", Page: 1, Branches: 100},
		{Type: EventBranchStale, Repo: "acme/repo", Record: sampleRecord()},
		{Type: EventRepoFinished, Repo: "acme/repo", Status: "Completed", Stale: 1},
		{Type: EventGovernorWait, Message: "rate limit low (50 remaining), waiting"},
		{Type: EventRunFinished, Repos: 2, Stale: 1},
	}
	for _, ev := range events {
		if err := s.Emit(ev); err != nil {
			t.Fatalf("Emit %s failed: %v", ev.Type, err)
		}
	}

	out := buf.String()
	for _, want := range []string{
		"Processing 2 repositories",
		"acme/repo",
		"page 1: 100 branches",
		"stale: feat-a",
		"merged to main",
		"Completed (1 stale)",
		"rate limit low",
		"Done: 2 repositories, 1 stale branches",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleSinkIgnoresEmptyUnknownEvents(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)
	if err := s.Emit(Event{Type: "something.else"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
