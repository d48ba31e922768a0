package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agency/internal/events"
)

// DAGPaneModel shows wave-by-wave project progress.
type DAGPaneModel struct {
	progress events.Progress
	running  int
	bar      progress.Model
	width    int
	height   int
	focused  bool
}

// NewDAGPaneModel creates a new DAG pane model.
func NewDAGPaneModel() DAGPaneModel {
	return DAGPaneModel{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Update handles messages for the DAG pane.
func (m DAGPaneModel) Update(msg tea.Msg) (DAGPaneModel, tea.Cmd) {
	env, ok := msg.(events.Envelope)
	if !ok {
		return m, nil
	}

	switch env.Type {
	case events.TypeProjectProgress:
		if p, ok := events.ProgressOf(env); ok {
			m.progress = p
		}
	case events.TypeTaskStarted:
		m.running++
	case events.TypeTaskCompleted, events.TypeTaskFailed:
		m.running = max(0, m.running-1)
	}
	return m, nil
}

// Progress returns the latest wave progress seen.
func (m DAGPaneModel) Progress() events.Progress {
	return m.progress
}

// View renders the DAG pane.
func (m DAGPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Wave Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	p := m.progress
	fmt.Fprintf(&b, "Wave:      %d/%d\n", p.Wave, p.TotalWaves)
	fmt.Fprintf(&b, "Total:     %d\n", p.TotalTasks)
	fmt.Fprintf(&b, "Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", p.TasksDone)))
	fmt.Fprintf(&b, "Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running)))
	fmt.Fprintf(&b, "Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", p.TasksFailed)))
	b.WriteString("\n")

	if p.TotalTasks > 0 {
		bar := m.bar
		bar.Width = min(m.width-16, 40)
		fmt.Fprintf(&b, "%s  %.2f%%\n", bar.ViewAs(p.Percentage()/100), p.Percentage())
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *DAGPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *DAGPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
