package panel

import (
	"context"
	"fmt"
	"strings"

	"ghcopilot/internal/diagnostics"
	"ghcopilot/internal/logging"
	"ghcopilot/internal/pipeline"
	"ghcopilot/internal/translator"

	"github.com/google/uuid"
)

// Runner executes a query. *pipeline.Pipeline is the production implementation.
type Runner interface {
	Run(ctx context.Context, q translator.Query) (pipeline.Result, error)
}

// Settings supplies the non-text parts of a query. It is read at every
// submission so configuration reloads apply to the next one.
type Settings func() translator.Query

// Job is a submission ready to run off the UI loop.
type Job struct {
	ID    string
	Query translator.Query
	run   Runner
}

// Run executes the job. A panicking runner is reported as an invocation
// failure instead of crashing the worker.
func (j Job) Run(ctx context.Context) (out Outcome) {
	out.ID = j.ID
	defer func() {
		if r := recover(); r != nil {
			out.Err = &translator.InvocationError{Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	out.Result, out.Err = j.run.Run(ctx, j.Query)
	return out
}

// Outcome is the result of a Job, delivered back to the UI loop.
type Outcome struct {
	ID     string
	Result pipeline.Result
	Err    error
}

// Machine is one panel instance.
type Machine struct {
	id       string
	runner   Runner
	settings Settings
	sink     diagnostics.Sink
	manager  *Manager
	size     Size

	state      State
	input      string
	transcript []Entry
	seq        int64
	bounds     Rect

	pendingID   string
	pendingText string
	lastRaw     translator.RawPayload
}

// Option configures a Machine.
type Option func(*Machine)

// WithSettings sets the query settings provider.
func WithSettings(s Settings) Option {
	return func(m *Machine) { m.settings = s }
}

// WithSink sets where failures are reported.
func WithSink(s diagnostics.Sink) Option {
	return func(m *Machine) { m.sink = s }
}

// WithManager registers the machine with a host's manager so that at most
// one panel is shown at a time.
func WithManager(mgr *Manager) Option {
	return func(m *Machine) { m.manager = mgr }
}

// WithSize sets the wanted panel size.
func WithSize(s Size) Option {
	return func(m *Machine) { m.size = s }
}

// NewMachine creates a hidden panel.
func NewMachine(runner Runner, opts ...Option) *Machine {
	m := &Machine{
		id:       uuid.NewString(),
		runner:   runner,
		settings: func() translator.Query { return translator.Query{} },
		sink:     diagnostics.LogSink{},
		size:     DefaultSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ID identifies the panel instance.
func (m *Machine) ID() string { return m.id }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Input returns the input field's text.
func (m *Machine) Input() string { return m.input }

// Pending reports whether a submission is in flight.
func (m *Machine) Pending() bool { return m.pendingID != "" }

// PendingText returns the text of the in-flight submission.
func (m *Machine) PendingText() string { return m.pendingText }

// Bounds returns the panel's last computed placement.
func (m *Machine) Bounds() Rect { return m.bounds }

// LastRaw returns the most recent raw payload the translator produced.
func (m *Machine) LastRaw() translator.RawPayload { return m.lastRaw }

// Transcript returns a copy of the transcript in sequence order.
func (m *Machine) Transcript() []Entry {
	return append([]Entry(nil), m.transcript...)
}

// Last returns the newest transcript entry.
func (m *Machine) Last() (Entry, bool) {
	if len(m.transcript) == 0 {
		return Entry{}, false
	}
	return m.transcript[len(m.transcript)-1], true
}

// Open shows the panel with a fresh transcript. Opening a panel that is
// already shown replaces it, dropping any in-flight submission; its outcome
// will be discarded by Complete.
func (m *Machine) Open() {
	if m.manager != nil {
		m.manager.activate(m)
	}
	if m.state != StateHidden {
		logging.PanelDebug("panel %s replaced", m.id)
	}
	m.reset()
	m.state = StateVisible
	logging.Panel("panel %s opened", m.id)
}

// Close hides the panel. The transcript is not kept.
func (m *Machine) Close() {
	if m.state == StateHidden {
		return
	}
	m.reset()
	m.state = StateHidden
	if m.manager != nil {
		m.manager.deactivate(m)
	}
	logging.Panel("panel %s closed", m.id)
}

func (m *Machine) reset() {
	m.transcript = nil
	m.input = ""
	m.pendingID = ""
	m.pendingText = ""
}

// SetInput replaces the input field's text. Ignored while hidden.
func (m *Machine) SetInput(s string) {
	if m.state == StateHidden {
		return
	}
	m.input = s
}

// Reposition recomputes the placement for a resized host.
func (m *Machine) Reposition(host Size) {
	m.bounds = Placement(host, m.size)
}

// HandleKey applies an editing key. Enter submits; the returned Job must be
// handed to a Worker. Escape clears the input without submitting.
func (m *Machine) HandleKey(k Key) (Job, bool) {
	switch k {
	case KeyEnter:
		return m.Submit()
	case KeyEscape:
		if m.state != StateHidden {
			m.input = ""
		}
	}
	return Job{}, false
}

// Submit starts a submission of the input. It only does so while Visible
// with non-blank input; otherwise nothing changes and ok is false.
func (m *Machine) Submit() (job Job, ok bool) {
	if m.state != StateVisible {
		return Job{}, false
	}
	text := strings.TrimSpace(m.input)
	if text == "" {
		return Job{}, false
	}

	q := m.settings()
	q.Text = text

	m.pendingID = uuid.NewString()
	m.pendingText = text
	m.state = StateAwaitingResponse
	logging.PanelDebug("panel %s submitted %s", m.id, m.pendingID)

	return Job{ID: m.pendingID, Query: q, run: m.runner}, true
}

// Complete applies a submission's outcome. Outcomes that do not belong to
// the in-flight submission are discarded and Complete returns false.
//
// On success the submitted text and the explanation are appended and the
// input is cleared. On failure the transcript is untouched, the input is
// kept for a retry and a diagnostic is reported. Either way the panel
// returns to Visible.
func (m *Machine) Complete(o Outcome) bool {
	if m.state != StateAwaitingResponse || o.ID == "" || o.ID != m.pendingID {
		logging.PanelDebug("panel %s discarded stale outcome %s", m.id, o.ID)
		return false
	}
	text := m.pendingText
	m.pendingID = ""
	m.pendingText = ""
	m.state = StateVisible
	if o.Result.Raw != "" {
		m.lastRaw = o.Result.Raw
	}

	if o.Err != nil {
		d := diagnostics.FromError(o.Err)
		m.sink.Report(d)
		logging.Get(logging.CategoryPanel).Warn("panel %s submission failed: %s", m.id, d.Message)
		return true
	}

	m.append(RoleUser, text)
	m.append(RoleAssistant, o.Result.Response.Explanation)
	m.input = ""
	return true
}

func (m *Machine) append(role Role, text string) {
	m.seq++
	m.transcript = append(m.transcript, Entry{Role: role, Text: text, Sequence: m.seq})
}
