package orchestrator

import (
	"context"
	"time"

	"github.com/aristath/agency/internal/events"
	"github.com/aristath/agency/internal/knowledge"
	"github.com/aristath/agency/internal/scheduler"
)

// TaskStore is the task persistence the runner and orchestrator depend on.
// Unknown IDs must yield an error matching ErrTaskNotFound.
type TaskStore interface {
	GetTask(ctx context.Context, taskID string) (*scheduler.Task, error)
	ListProjectTasks(ctx context.Context, projectID string) ([]*scheduler.Task, error)
	// GetTasks omits unknown IDs instead of failing.
	GetTasks(ctx context.Context, ids []string) ([]*scheduler.Task, error)
	MarkInProgress(ctx context.Context, taskID string, startedAt time.Time) error
	CompleteTask(ctx context.Context, taskID string, output map[string]any, actualTokens int, completedAt time.Time) error
	FailTask(ctx context.Context, taskID string, reason string, output map[string]any) error
	ResetTask(ctx context.Context, taskID string) error
}

// ProjectStore loads and updates projects.
// Unknown IDs must yield an error matching ErrProjectNotFound.
type ProjectStore interface {
	GetProject(ctx context.Context, projectID string) (*scheduler.Project, error)
	UpdateProject(ctx context.Context, p *scheduler.Project) error
}

// ExecutionStore holds agent execution audit records.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, e *scheduler.Execution) error
	UpdateExecution(ctx context.Context, e *scheduler.Execution) error
	ListExecutions(ctx context.Context, taskID string) ([]*scheduler.Execution, error)
}

// KnowledgeSink archives summaries. Failures are logged, never propagated.
type KnowledgeSink interface {
	Store(ctx context.Context, entry knowledge.Entry) error
}

// EventSink receives progress events. Publish must not block.
type EventSink interface {
	Publish(projectID string, env events.Envelope)
}

type nopEvents struct{}

func (nopEvents) Publish(string, events.Envelope) {}
