package agent

import (
	"context"
	"time"
)

// Status is the discriminator of a capability result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Request carries everything a capability needs to work on one task.
type Request struct {
	TaskID      string
	ProjectID   string
	Role        string
	Title       string
	Description string
	Input       map[string]any
}

// Result is what a capability reports for one invocation.
type Result struct {
	Status     Status
	Output     map[string]any
	Response   string
	Prompt     string
	TokensUsed int
	Error      string
	Duration   time.Duration
	Metadata   map[string]any
}

// Succeeded reports whether the invocation produced a usable output.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Capability defines the interface every agent implementation must satisfy.
// Implementations must not retry internally; the task runner owns retries.
type Capability interface {
	// Execute performs the task described by req.
	Execute(ctx context.Context, req Request) (Result, error)
}

// Func adapts an ordinary function to the Capability interface.
type Func func(ctx context.Context, req Request) (Result, error)

// Execute calls f(ctx, req).
func (f Func) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
