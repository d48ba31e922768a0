package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/agency/internal/scheduler"
)

// StatusReport is a point-in-time view of a project and its task counts.
type StatusReport struct {
	ProjectID   string                       `json:"project_id"`
	Name        string                       `json:"name"`
	Status      scheduler.ProjectStatus      `json:"status"`
	TotalTasks  int                          `json:"total_tasks"`
	TaskCounts  map[scheduler.TaskStatus]int `json:"task_counts"`
	Error       string                       `json:"error,omitempty"`
	CreatedAt   time.Time                    `json:"created_at"`
	StartedAt   *time.Time                   `json:"started_at,omitempty"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
}

// AgentTask is one entry of a project's per-agent task listing.
type AgentTask struct {
	ID     string               `json:"id"`
	Title  string               `json:"title"`
	Status scheduler.TaskStatus `json:"status"`
}

// ProgressReport summarises how far a project has come.
type ProgressReport struct {
	ProjectID          string                  `json:"project_id"`
	Name               string                  `json:"name"`
	Status             scheduler.ProjectStatus `json:"status"`
	TotalTasks         int                     `json:"total_tasks"`
	CompletedTasks     int                     `json:"completed_tasks"`
	FailedTasks        int                     `json:"failed_tasks"`
	InProgressTasks    int                     `json:"in_progress_tasks"`
	PendingTasks       int                     `json:"pending_tasks"`
	ProgressPercentage float64                 `json:"progress_percentage"`
	EstimatedTokens    int                     `json:"estimated_tokens"`
	ActualTokens       int                     `json:"actual_tokens"`
	TasksByAgent       map[string][]AgentTask  `json:"tasks_by_agent"`
}

// Status reports the project's state with a count for every task status.
func (o *ProjectOrchestrator) Status(ctx context.Context, projectID string) (*StatusReport, error) {
	project, tasks, err := o.load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	counts := make(map[scheduler.TaskStatus]int, len(scheduler.TaskStatuses))
	for _, s := range scheduler.TaskStatuses {
		counts[s] = 0
	}
	for _, t := range tasks {
		counts[t.Status]++
	}

	return &StatusReport{
		ProjectID:   project.ID,
		Name:        project.Name,
		Status:      project.Status,
		TotalTasks:  len(tasks),
		TaskCounts:  counts,
		Error:       project.Error,
		CreatedAt:   project.CreatedAt,
		StartedAt:   project.StartedAt,
		CompletedAt: project.CompletedAt,
	}, nil
}

// Progress reports completion percentage, token usage and the tasks of each agent
// in project order.
func (o *ProjectOrchestrator) Progress(ctx context.Context, projectID string) (*ProgressReport, error) {
	project, tasks, err := o.load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report := &ProgressReport{
		ProjectID:    project.ID,
		Name:         project.Name,
		Status:       project.Status,
		TotalTasks:   len(tasks),
		TasksByAgent: make(map[string][]AgentTask),
	}
	for _, t := range tasks {
		switch t.Status {
		case scheduler.TaskCompleted:
			report.CompletedTasks++
		case scheduler.TaskFailed:
			report.FailedTasks++
		case scheduler.TaskInProgress:
			report.InProgressTasks++
		default:
			report.PendingTasks++
		}
		report.EstimatedTokens += t.EstimatedTokens
		report.ActualTokens += t.ActualTokens
		report.TasksByAgent[t.AgentRole] = append(report.TasksByAgent[t.AgentRole], AgentTask{
			ID:     t.ID,
			Title:  t.Title,
			Status: t.Status,
		})
	}
	report.ProgressPercentage = percentage(report.CompletedTasks, report.TotalTasks)
	return report, nil
}

func (o *ProjectOrchestrator) load(ctx context.Context, projectID string) (*scheduler.Project, []*scheduler.Task, error) {
	project, err := o.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load project: %w", err)
	}
	tasks, err := o.tasks.ListProjectTasks(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	return project, tasks, nil
}
