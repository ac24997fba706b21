// Package canvas is a terminal stand-in for the node-graph canvas that hosts
// the copilot panel. It owns the UI loop: key presses and resizes go to the
// event hub, submissions go to the panel worker, and outcomes come back as
// messages.
package canvas

import (
	"ghcopilot/internal/bridge"
	"ghcopilot/internal/diagnostics"
	"ghcopilot/internal/logging"
	"ghcopilot/internal/panel"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// CellSize is the host-unit size of one terminal cell. The panel is placed
// in host units, like on a pixel canvas, and converted back to cells to draw.
var CellSize = panel.Size{W: 8, H: 18}

// Options configures the canvas host.
type Options struct {
	Runner     panel.Runner
	Settings   panel.Settings
	Sink       diagnostics.Sink // in addition to the on-screen status line
	OpenChord  string
	CloseChord string
	PanelSize  panel.Size // host units
}

type outcomeMsg panel.Outcome

// statusHistory bounds the diagnostics kept for the status line.
const statusHistory = 16

// Model is the bubbletea model of the canvas host.
type Model struct {
	hub     *bridge.Hub
	bridge  *bridge.Bridge
	machine *panel.Machine
	manager *panel.Manager
	worker  *panel.Worker
	status  *diagnostics.MemorySink

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   Styles

	width, height int
	wrapWidth     int // renderer word wrap
}

// New creates the canvas host with the panel hidden.
func New(opts Options) Model {
	status := &diagnostics.MemorySink{Limit: statusHistory}
	manager := panel.NewManager()
	size := opts.PanelSize
	if size.W <= 0 || size.H <= 0 {
		size = panel.DefaultSize
	}

	machineOpts := []panel.Option{
		panel.WithSink(diagnostics.Multi(status, opts.Sink)),
		panel.WithManager(manager),
		panel.WithSize(size),
	}
	if opts.Settings != nil {
		machineOpts = append(machineOpts, panel.WithSettings(opts.Settings))
	}
	machine := panel.NewMachine(opts.Runner, machineOpts...)

	hub := bridge.NewHub()
	b := bridge.New(machine, opts.OpenChord, opts.CloseChord)
	b.Attach(hub)

	ti := textinput.New()
	ti.Placeholder = "Ask for components..."
	ti.Prompt = "> "
	ti.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		hub:      hub,
		bridge:   b,
		machine:  machine,
		manager:  manager,
		worker:   panel.NewWorker(1),
		status:   status,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		styles:   DefaultStyles(),
	}
}

// Machine returns the panel state machine.
func (m Model) Machine() *panel.Machine { return m.machine }

// Hub returns the event source the canvas publishes to.
func (m Model) Hub() *bridge.Hub { return m.hub }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return waitForOutcome(m.worker.Outcomes())
}

// Shutdown detaches from the hub and stops the worker. Safe to call repeatedly.
func (m Model) Shutdown() {
	m.bridge.Detach()
	m.worker.Close()
}

func waitForOutcome(ch <-chan panel.Outcome) tea.Cmd {
	return func() tea.Msg {
		out, ok := <-ch
		if !ok {
			return nil
		}
		return outcomeMsg(out)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.hub.PublishResize(panel.Size{W: msg.Width * CellSize.W, H: msg.Height * CellSize.H})
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case outcomeMsg:
		if m.machine.Complete(panel.Outcome(msg)) {
			if msg.Err == nil {
				// A successful answer supersedes the last failure.
				m.status.Clear()
			}
			m.input.SetValue(m.machine.Input())
			m.input.CursorEnd()
			m.refreshTranscript()
		}
		return m, waitForOutcome(m.worker.Outcomes())

	case spinner.TickMsg:
		if m.machine.State() != panel.StateAwaitingResponse {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.Shutdown()
		return m, tea.Quit
	}

	before := m.machine.State()
	if m.hub.PublishKey(msg.String()) {
		if m.machine.State() != panel.StateHidden && before == panel.StateHidden {
			m.input.SetValue("")
			m.input.Focus()
		}
		m.layout()
		return m, nil
	}

	switch m.machine.State() {
	case panel.StateHidden:
		if msg.String() == "q" {
			m.Shutdown()
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEnter:
		job, ok := m.machine.HandleKey(panel.KeyEnter)
		if !ok {
			return m, nil
		}
		if err := m.worker.Submit(job); err != nil {
			logging.Get(logging.CategoryPanel).Error("submit failed: %v", err)
			m.machine.Complete(panel.Outcome{ID: job.ID, Err: err})
			return m, nil
		}
		return m, m.spinner.Tick
	case tea.KeyEsc:
		m.machine.HandleKey(panel.KeyEscape)
		m.input.SetValue(m.machine.Input())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.machine.SetInput(m.input.Value())
	return m, cmd
}

// layout sizes the viewport and input to the panel's current bounds.
func (m *Model) layout() {
	b := m.cells()
	// border (2) + padding (2)
	inner := max(b.W-4, 10)
	m.input.Width = inner - len(m.input.Prompt) - 1
	// border (2) + title + input + status
	m.viewport.Width = inner
	m.viewport.Height = max(b.H-5, 1)

	if m.renderer == nil || m.wrapWidth != inner {
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(inner),
		)
		m.wrapWidth = inner
	}
	m.refreshTranscript()
}

// cells returns the panel bounds in terminal cells.
func (m Model) cells() panel.Rect {
	b := m.machine.Bounds()
	return panel.Rect{
		X: b.X / CellSize.W,
		Y: b.Y / CellSize.H,
		W: b.W / CellSize.W,
		H: b.H / CellSize.H,
	}
}
