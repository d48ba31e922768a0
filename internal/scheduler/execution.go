package scheduler

import (
	"errors"
	"time"
)

var (
	// ErrTaskNotFound is returned by stores when a task ID is unknown.
	ErrTaskNotFound = errors.New("task not found")
	// ErrProjectNotFound is returned by stores when a project ID is unknown.
	ErrProjectNotFound = errors.New("project not found")
)

// ExecutionStatus is the state of one agent execution audit record.
type ExecutionStatus string

const (
	ExecutionInProgress ExecutionStatus = "in_progress"
	ExecutionCompleted  ExecutionStatus = "completed"
	ExecutionFailed     ExecutionStatus = "failed"
)

// Execution is the audit record of one Run invocation against an agent.
// Internal retries update the same record and bump Attempts.
type Execution struct {
	ID         string
	TaskID     string
	AgentRole  string
	Prompt     string
	Response   string
	TokensUsed int
	DurationMs int64
	Status     ExecutionStatus
	Error      string
	Attempts   int
	Metadata   map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
