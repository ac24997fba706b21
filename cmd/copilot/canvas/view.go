package canvas

import (
	"fmt"
	"strings"

	"ghcopilot/internal/diagnostics"
	"ghcopilot/internal/panel"
	"ghcopilot/internal/response"

	"github.com/charmbracelet/lipgloss"
)

// refreshTranscript re-renders the transcript into the viewport.
func (m *Model) refreshTranscript() {
	var sb strings.Builder
	for _, e := range m.machine.Transcript() {
		switch e.Role {
		case panel.RoleUser:
			sb.WriteString(m.styles.User.Render("you: " + e.Text))
			sb.WriteString("\n")
		case panel.RoleAssistant:
			sb.WriteString(m.renderMarkdown(e.Text))
			sb.WriteString("\n")
		}
	}
	if summary := m.summary(); summary != "" {
		sb.WriteString(m.styles.Summary.Render(summary))
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return m.styles.Assistant.Render(text)
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return m.styles.Assistant.Render(text)
	}
	return strings.TrimRight(out, "\n")
}

// summary lists the components and connections of the last answer.
func (m Model) summary() string {
	if len(m.machine.Transcript()) == 0 || m.machine.LastRaw() == "" {
		return ""
	}
	resp, err := response.Decode(m.machine.LastRaw())
	if err != nil {
		return ""
	}
	var lines []string
	for _, c := range resp.ComponentNames() {
		lines = append(lines, "  + "+c)
	}
	for _, c := range resp.ConnectionLines() {
		lines = append(lines, "  ~ "+c)
	}
	if len(lines) == 0 {
		return ""
	}
	return "components:\n" + strings.Join(lines, "\n")
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "initializing canvas..."
	}

	if m.machine.State() == panel.StateHidden {
		return m.styles.Canvas.Width(m.width).Height(m.height).Render(m.canvasText())
	}

	b := m.cells()
	left := m.styles.Canvas.Width(max(b.X, 0)).Height(m.height).Render(m.canvasText())
	right := lipgloss.NewStyle().MarginTop(b.Y).Render(m.panelView(b))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m Model) canvasText() string {
	return "node-graph canvas\n\n" + m.styles.Hint.Render("ctrl+k: copilot   q: quit")
}

func (m Model) panelView(b panel.Rect) string {
	title := m.styles.Title.Render("Copilot")

	var status string
	switch {
	case m.machine.State() == panel.StateAwaitingResponse:
		status = m.spinner.View() + " " + m.styles.Status.Render("thinking...")
	default:
		if d, ok := m.status.Last(); ok {
			style := m.styles.Warning
			if d.Level == diagnostics.LevelError {
				style = m.styles.Error
			}
			status = style.Render(truncate(d.Message, max(b.W-4, 10)))
		} else {
			status = m.styles.Status.Render(fmt.Sprintf("%d messages", len(m.machine.Transcript())))
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.viewport.View(),
		m.input.View(),
		status,
	)
	return m.styles.Panel.Width(max(b.W-2, 1)).Render(body)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
