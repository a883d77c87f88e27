package output

import (
	"errors"
	"fmt"
)

// Sink is a destination for crawl lifecycle events.
type Sink interface {
	Emit(ev Event) error
	Close() error
}

// Manager fans events out to every configured sink. Sink failures are
// collected, not fatal: losing a console line must never abort a crawl.
type Manager struct {
	sinks []Sink
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Emit(ev Event) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ev); err != nil {
			errs = append(errs, fmt.Errorf("emit %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Emitf emits a free-form message event.
func (m *Manager) Emitf(format string, args ...any) error {
	return m.Emit(Event{Type: EventMessage, Message: fmt.Sprintf(format, args...)})
}

func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
