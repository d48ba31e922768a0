package orchestrator

import (
	"time"
)

// ResultStatus discriminates ExecutionResult outcomes.
type ResultStatus string

const (
	StatusSuccess          ResultStatus = "success"
	StatusAlreadyCompleted ResultStatus = "already_completed"
	StatusError            ResultStatus = "error"
)

// ExecutionResult is the outcome of running one task.
type ExecutionResult struct {
	TaskID     string
	ProjectID  string
	Agent      string
	Status     ResultStatus
	Output     map[string]any
	TokensUsed int
	Attempts   int // agent invocations made by this run
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the task is completed after this run.
func (r ExecutionResult) Succeeded() bool {
	return r.Status == StatusSuccess || r.Status == StatusAlreadyCompleted
}

// ErrorMessage returns the failure reason, or "" on success.
func (r ExecutionResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
