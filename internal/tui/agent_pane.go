package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agency/internal/events"
)

// Task display states
const (
	stateRunning   = "running"
	stateCompleted = "completed"
	stateFailed    = "failed"
)

// TaskState is what the watch view knows about one task.
type TaskState struct {
	TaskID    string
	Title     string
	AgentRole string
	Status    string
	Attempt   int
	Tokens    int
	Log       []string
	StartTime time.Time
}

// AgentPaneModel lists tasks as they start and shows the selected task's event log.
type AgentPaneModel struct {
	tasks       map[string]*TaskState // taskID -> state
	taskOrder   []string              // first-seen order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewAgentPaneModel creates a new agent pane model.
func NewAgentPaneModel() AgentPaneModel {
	return AgentPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the agent pane.
func (m AgentPaneModel) Update(msg tea.Msg) (AgentPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			// Delegate other keys to viewport for scrolling
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.Envelope:
		m.apply(msg)
	}

	return m, cmd
}

// apply folds a task event into the pane state.
func (m *AgentPaneModel) apply(env events.Envelope) {
	if env.TaskID == "" {
		return
	}

	task, exists := m.tasks[env.TaskID]
	if !exists {
		task = &TaskState{
			TaskID:    env.TaskID,
			AgentRole: env.Agent,
			StartTime: env.Timestamp,
		}
		m.tasks[env.TaskID] = task
		m.taskOrder = append(m.taskOrder, env.TaskID)
	}
	if title, ok := env.Data["title"].(string); ok && title != "" {
		task.Title = title
	}

	stamp := env.Timestamp.Format("15:04:05")
	switch env.Type {
	case events.TypeTaskStarted:
		task.Status = stateRunning
		task.Attempt = intValue(env.Data["attempt"])
		task.Log = append(task.Log, fmt.Sprintf("%s started (attempt %d) by %s", stamp, task.Attempt, env.Agent))
	case events.TypeTaskCompleted:
		task.Status = stateCompleted
		task.Tokens = intValue(env.Data["tokens_used"])
		task.Log = append(task.Log, fmt.Sprintf("%s completed, %d tokens in %dms", stamp, task.Tokens, intValue(env.Data["duration_ms"])))
	case events.TypeTaskFailed:
		task.Status = stateFailed
		task.Log = append(task.Log, fmt.Sprintf("%s failed: %v", stamp, env.Data["error"]))
	}

	if m.selectedTaskID() == env.TaskID || len(m.taskOrder) == 1 {
		m.updateViewportContent()
	}
}

// View renders the agent pane.
func (m AgentPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 30
	viewportWidth := m.width - listWidth - 4 // account for borders and padding

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m AgentPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	}
	for i, id := range m.taskOrder {
		task := m.tasks[id]
		name := task.Title
		if name == "" {
			name = task.TaskID
		}
		if len(name) > width-6 {
			name = name[:width-9] + "..."
		}

		line := fmt.Sprintf("%s %s", StatusIcon(task.Status), name)
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case stateRunning:
		return StyleStatusRunning.Render("●")
	case stateCompleted:
		return StyleStatusComplete.Render("✓")
	case stateFailed:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

func (m AgentPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

// Task returns the state of a task seen so far.
func (m AgentPaneModel) Task(taskID string) (TaskState, bool) {
	t, ok := m.tasks[taskID]
	if !ok {
		return TaskState{}, false
	}
	return *t, true
}

func (m *AgentPaneModel) updateViewportContent() {
	task, ok := m.tasks[m.selectedTaskID()]
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	header := fmt.Sprintf("%s [%s]\nagent: %s\n\n", task.Title, task.TaskID, task.AgentRole)
	m.viewport.SetContent(header + strings.Join(task.Log, "\n"))
	m.viewport.GotoBottom()
}

func (m *AgentPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-30-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *AgentPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *AgentPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
