// Package diagnostics turns pipeline failures into one-line, host-visible
// messages and delivers them to sinks: the log, memory (tests, the panel
// view) and an optional sqlite journal.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ghcopilot/internal/interp"
	"ghcopilot/internal/logging"
	"ghcopilot/internal/response"
	"ghcopilot/internal/translator"
)

// Level is the severity of a diagnostic.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Diagnostic is one host-visible message.
type Diagnostic struct {
	Level   Level
	Source  string
	Message string
	At      time.Time
}

// String renders the single line shown to the user.
func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Level, d.Source, d.Message)
}

// Sink receives diagnostics. Report must not block for long; it is called
// from the UI loop.
type Sink interface {
	Report(d Diagnostic)
}

// FromError builds the diagnostic for a pipeline failure.
func FromError(err error) Diagnostic {
	level, source := Classify(err)
	return Diagnostic{Level: level, Source: source, Message: OneLine(err.Error()), At: time.Now()}
}

// Classify maps an error to a level and the component it came from.
// Initialization failures are errors (nothing works until retried); the rest
// are recoverable warnings.
func Classify(err error) (Level, string) {
	if !interp.IsRecoverable(err) {
		return LevelError, "interpreter"
	}
	var (
		resErr   *interp.ModuleResolutionError
		invErr   *translator.InvocationError
		tErr     *translator.TimeoutError
		missing  *response.MissingFieldError
		reported *response.TranslatorError
	)
	switch {
	case errors.As(err, &resErr):
		return LevelWarning, "module"
	case errors.As(err, &tErr), errors.Is(err, context.DeadlineExceeded):
		return LevelWarning, "timeout"
	case errors.As(err, &invErr), errors.As(err, &reported):
		return LevelWarning, "translator"
	case errors.As(err, &missing), errors.Is(err, response.ErrMalformed):
		return LevelWarning, "decode"
	case errors.Is(err, interp.ErrReentrantLock):
		return LevelError, "lock"
	}
	return LevelWarning, "copilot"
}

// OneLine collapses s to a single trimmed line.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// =============================================================================
// SINKS
// =============================================================================

// LogSink writes diagnostics to the diagnostics log category.
type LogSink struct{}

// Report implements Sink.
func (LogSink) Report(d Diagnostic) {
	log := logging.Get(logging.CategoryDiagnostics).With("source", d.Source)
	switch d.Level {
	case LevelError:
		log.Error("%s", d.Message)
	case LevelWarning:
		log.Warn("%s", d.Message)
	default:
		log.Info("%s", d.Message)
	}
}

// MemorySink keeps diagnostics in memory. When Limit is positive only the
// most recent Limit diagnostics are kept.
type MemorySink struct {
	Limit int

	mu    sync.Mutex
	items []Diagnostic
}

// Report implements Sink.
func (m *MemorySink) Report(d Diagnostic) {
	m.mu.Lock()
	m.items = append(m.items, d)
	if m.Limit > 0 && len(m.items) > m.Limit {
		m.items = append(m.items[:0:0], m.items[len(m.items)-m.Limit:]...)
	}
	m.mu.Unlock()
}

// Clear drops everything reported so far.
func (m *MemorySink) Clear() {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
}

// All returns a copy of everything reported so far.
func (m *MemorySink) All() []Diagnostic {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Diagnostic(nil), m.items...)
}

// Len returns the number of diagnostics reported.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Last returns the most recent diagnostic.
func (m *MemorySink) Last() (Diagnostic, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) == 0 {
		return Diagnostic{}, false
	}
	return m.items[len(m.items)-1], true
}

// Multi fans a diagnostic out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Report(d Diagnostic) {
	for _, s := range m {
		s.Report(d)
	}
}
