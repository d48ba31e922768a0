package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agency/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneTasks PaneID = iota
	PaneWaves
)

// DoneMsg reports that the watched project run has returned.
type DoneMsg struct {
	Status string
	Err    error
}

// Model is the root Bubble Tea model for `run --watch`.
type Model struct {
	agentPane   AgentPaneModel
	dagPane     DAGPaneModel
	focusedPane PaneID
	eventSub    <-chan events.Envelope
	projectID   string
	done        *DoneMsg
	width       int
	height      int
	quitting    bool
}

// New creates a watch model subscribed to one project's events.
func New(bus *events.Bus, projectID string) Model {
	return Model{
		agentPane:   NewAgentPaneModel(),
		dagPane:     NewDAGPaneModel(),
		focusedPane: PaneTasks,
		eventSub:    bus.Subscribe(projectID, 256),
		projectID:   projectID,
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Envelope) tea.Cmd {
	return func() tea.Msg {
		env, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return env
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyTab, KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % 2
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneTasks
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneWaves
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneTasks {
				var cmd tea.Cmd
				m.agentPane, cmd = m.agentPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.Envelope:
		var cmd tea.Cmd
		m.agentPane, cmd = m.agentPane.Update(msg)
		cmds = append(cmds, cmd)
		m.dagPane, cmd = m.dagPane.Update(msg)
		cmds = append(cmds, cmd)
		// Also wait for next event
		cmds = append(cmds, waitForEvent(m.eventSub))

	case DoneMsg:
		m.done = &msg
	}

	return m, tea.Batch(cmds...)
}

// Done returns the run outcome once the project has finished.
func (m Model) Done() (DoneMsg, bool) {
	if m.done == nil {
		return DoneMsg{}, false
	}
	return *m.done, true
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := StyleTitle.Render(fmt.Sprintf("Project %s", m.projectID))
	if d, ok := m.Done(); ok {
		if d.Err != nil {
			header += StyleStatusFailed.Render(fmt.Sprintf("  error: %v", d.Err))
		} else {
			header += statusStyle(d.Status).Render("  " + d.Status)
		}
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.agentPane.View(), m.dagPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, mainContent, HelpView())
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 2 // header and help bar

	m.agentPane.SetSize(leftWidth, availableHeight)
	m.dagPane.SetSize(rightWidth, availableHeight)

	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.agentPane.SetFocused(m.focusedPane == PaneTasks)
	m.dagPane.SetFocused(m.focusedPane == PaneWaves)
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return StyleStatusComplete
	case "failed":
		return StyleStatusFailed
	default:
		return StyleStatusRunning
	}
}
