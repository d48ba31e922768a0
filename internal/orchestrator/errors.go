package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/agency/internal/scheduler"
)

var (
	// ErrDependency is matched by every DependencyError.
	ErrDependency = errors.New("dependencies not met")
	// ErrConfiguration is matched by every ConfigurationError.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidProjectState is returned when a project cannot be started from its current status.
	ErrInvalidProjectState = errors.New("invalid project state")

	ErrTaskNotFound    = scheduler.ErrTaskNotFound
	ErrProjectNotFound = scheduler.ErrProjectNotFound
)

// UnmetDependency names one dependency that blocked a task and why.
type UnmetDependency struct {
	TaskID string
	Reason string // status of the dependency, "missing", or "other project"
}

// DependencyError reports that a task was run before its dependencies completed.
// Never retried.
type DependencyError struct {
	TaskID string
	Unmet  []UnmetDependency
}

func (e *DependencyError) Error() string {
	parts := make([]string, len(e.Unmet))
	for i, u := range e.Unmet {
		parts[i] = fmt.Sprintf("%s (%s)", u.TaskID, u.Reason)
	}
	return fmt.Sprintf("task %s has unmet dependencies: %s", e.TaskID, strings.Join(parts, ", "))
}

func (e *DependencyError) Unwrap() error { return ErrDependency }

// ConfigurationError reports a task that cannot run with the current setup,
// such as an agent role with no registered capability. Never retried.
type ConfigurationError struct {
	TaskID string
	Role   string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("task %s: %s", e.TaskID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// ExecutionError is one failed attempt. Retryable.
type ExecutionError struct {
	TaskID  string
	Attempt int
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("attempt %d of task %s failed: %v", e.Attempt, e.TaskID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TaskExecutionError is the terminal failure after retries are exhausted.
type TaskExecutionError struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %s failed after %d attempt(s): %v", e.TaskID, e.Attempts, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could change the outcome.
func retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrDependency), errors.Is(err, ErrConfiguration), errors.Is(err, ErrTaskNotFound):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
