package panel

import "sync"

// Manager enforces that at most one panel is shown on a host at a time.
type Manager struct {
	mu     sync.Mutex
	active *Machine
}

// NewManager creates a manager with no active panel.
func NewManager() *Manager {
	return &Manager{}
}

// Active returns the shown panel, or nil.
func (g *Manager) Active() *Machine {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// activate makes m the shown panel, closing the previous one.
func (g *Manager) activate(m *Machine) {
	g.mu.Lock()
	prev := g.active
	g.active = m
	g.mu.Unlock()

	if prev != nil && prev != m {
		prev.Close()
	}
}

func (g *Manager) deactivate(m *Machine) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == m {
		g.active = nil
	}
}
