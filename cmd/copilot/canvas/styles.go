package canvas

import "github.com/charmbracelet/lipgloss"

// Palette for the demo canvas host.
var (
	Background = lipgloss.Color("#141d2b")
	Foreground = lipgloss.Color("#f2f2f2")
	Primary    = lipgloss.Color("#8BC34A")
	Muted      = lipgloss.Color("#2a3850")
	Subtle     = lipgloss.Color("240")
	Warning    = lipgloss.Color("#FFC107")
	Danger     = lipgloss.Color("#e53935")
)

// Styles holds the rendered styles.
type Styles struct {
	Canvas    lipgloss.Style
	Hint      lipgloss.Style
	Panel     lipgloss.Style
	Title     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Summary   lipgloss.Style
	Status    lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
}

// DefaultStyles returns the styles used by the canvas host.
func DefaultStyles() Styles {
	return Styles{
		Canvas: lipgloss.NewStyle().
			Foreground(Subtle).
			Align(lipgloss.Center, lipgloss.Center),
		Hint: lipgloss.NewStyle().Foreground(Subtle).Italic(true),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(Primary),
		User:      lipgloss.NewStyle().Bold(true).Foreground(Foreground),
		Assistant: lipgloss.NewStyle().Foreground(Foreground),
		Summary:   lipgloss.NewStyle().Foreground(Subtle),
		Status:    lipgloss.NewStyle().Foreground(Subtle),
		Warning:   lipgloss.NewStyle().Foreground(Warning),
		Error:     lipgloss.NewStyle().Foreground(Danger).Bold(true),
	}
}
