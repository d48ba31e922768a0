package scheduler

import "time"

// ProjectStatus represents the life-cycle state of a project.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectPlanning   ProjectStatus = "planning"
	ProjectReady      ProjectStatus = "ready"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectReview     ProjectStatus = "review" // Finished with some failed tasks
	ProjectCompleted  ProjectStatus = "completed"
	ProjectFailed     ProjectStatus = "failed"
	ProjectCancelled  ProjectStatus = "cancelled"
)

// Startable reports whether a project in this status may begin execution.
func (s ProjectStatus) Startable() bool {
	return s == ProjectPlanning || s == ProjectReady
}

// Project groups the tasks of one decomposed request.
type Project struct {
	ID          string
	Name        string
	Description string
	Status      ProjectStatus
	Priority    Priority
	Results     map[string]any // Aggregated execution results, set by the orchestrator
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}
