package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// ConsoleSink renders crawl progress as human-readable text.
type ConsoleSink struct {
	writer io.Writer
	mu     sync.Mutex

	staleColor *color.Color
	okColor    *color.Color
	failColor  *color.Color
	mutedColor *color.Color
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{
		writer:     w,
		staleColor: color.New(color.FgYellow),
		okColor:    color.New(color.FgGreen),
		failColor:  color.New(color.FgRed),
		mutedColor: color.New(color.Faint),
	}
}

func (s *ConsoleSink) Emit(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case EventRunStarted:
		_, err := fmt.Fprintf(s.writer, "Processing %d repositories\n", ev.Repos)
		return err
	case EventRepoStarted:
		_, err := fmt.Fprintf(s.writer, "\n%s\n", ev.Repo)
		return err
	case EventRepoSkipped:
		_, err := s.mutedColor.Fprintf(s.writer, "%s: already processed, skipping\n", ev.Repo)
		return err
	case EventPageFetched:
		_, err := fmt.Fprintf(s.writer, "  page %d: %d branches\n", ev.Page, ev.Branches)
		return err
	case EventBranchStale:
		if ev.Record == nil {
			return nil
		}
		_, err := s.staleColor.Fprintf(s.writer, "  stale: %s (last commit %s, merged to %s)\n",
			ev.Record.BranchName, ev.Record.LastCommitDate, ev.Record.LastMergedTo.Label())
		return err
	case EventRepoFinished:
		c := s.okColor
		if ev.Status != "Completed" {
			c = s.failColor
		}
		_, err := c.Fprintf(s.writer, "  %s: %s (%d stale)\n", ev.Repo, ev.Status, ev.Stale)
		return err
	case EventGovernorWait:
		_, err := s.mutedColor.Fprintf(s.writer, "%s\n", ev.Message)
		return err
	case EventRunFinished:
		_, err := fmt.Fprintf(s.writer, "\nDone: %d repositories, %d stale branches\n", ev.Repos, ev.Stale)
		return err
	default:
		if ev.Message != "" {
			_, err := fmt.Fprintln(s.writer, ev.Message)
			return err
		}
		return nil
	}
}

func (s *ConsoleSink) Close() error { return nil }
