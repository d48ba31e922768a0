package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchExecutor runs a set of tasks concurrently through a TaskRunner.
type BatchExecutor struct {
	runner *TaskRunner
	limit  int
}

// NewBatchExecutor creates a batch executor. A limit of 0 runs every task at once.
func NewBatchExecutor(runner *TaskRunner, limit int) *BatchExecutor {
	if limit < 0 {
		limit = 0
	}
	return &BatchExecutor{runner: runner, limit: limit}
}

// Execute runs ids concurrently and returns one result per id in input order.
// A failing task never cancels its siblings; its error is carried in the result.
func (b *BatchExecutor) Execute(ctx context.Context, ids []string) ([]ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]ExecutionResult, len(ids))

	// Plain group: no derived context, so one failure does not abort the rest
	var g errgroup.Group
	if b.limit > 0 {
		g.SetLimit(b.limit)
	}

	for i, id := range ids {
		g.Go(func() error {
			res, err := b.runner.Run(ctx, id)
			if err != nil && res.Status != StatusError {
				res.Status = StatusError
				res.Err = err
			}
			results[i] = res
			return nil
		})
	}

	_ = g.Wait()
	return results, nil
}
