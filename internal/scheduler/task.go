package scheduler

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"     // Created, waiting to run
	TaskInProgress TaskStatus = "in_progress" // An attempt is running
	TaskCompleted  TaskStatus = "completed"   // Finished successfully (terminal)
	TaskFailed     TaskStatus = "failed"      // Retries exhausted or dependency violation
)

// TaskStatuses lists every task status in life-cycle order.
var TaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskCompleted, TaskFailed}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Priority is informational; the planner only uses it to order tasks inside a wave.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// rank returns a sort key where lower runs earlier. Unknown priorities sort as normal.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 3
	default:
		return 2
	}
}

// Task represents a unit of work in a project's dependency graph.
type Task struct {
	ID              string         // Unique identifier
	ProjectID       string         // Owning project; dependencies must share it
	Title           string         // Human-readable title
	Description     string         // Free-text description handed to the agent
	AgentRole       string         // Key into the agent registry (e.g., "backend_developer")
	Status          TaskStatus
	Priority        Priority
	DependsOn       []string       // Task IDs this task depends on
	EstimatedTokens int
	ActualTokens    int
	Input           map[string]any // Opaque payload passed to the agent
	Output          map[string]any // Opaque result (populated after completion or failure)
	Error           string         // Last failure reason
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	UpdatedAt       time.Time
}

// Dependencies returns the task's dependency IDs with duplicates and blanks removed,
// preserving declaration order. A self reference is kept so that it surfaces as a cycle.
func (t *Task) Dependencies() []string {
	seen := make(map[string]bool, len(t.DependsOn))
	deps := make([]string, 0, len(t.DependsOn))
	for _, id := range t.DependsOn {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		deps = append(deps, id)
	}
	return deps
}
