package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aristath/agency/internal/agent"
	"github.com/aristath/agency/internal/events"
	"github.com/aristath/agency/internal/scheduler"
	"github.com/aristath/agency/internal/telemetry"
)

// RunnerConfig configures a TaskRunner.
type RunnerConfig struct {
	Tasks      TaskStore       // Required
	Executions ExecutionStore  // Required
	Agents     *agent.Registry // Required
	Events     EventSink       // Optional (nil discards events)
	Knowledge  KnowledgeSink   // Optional (nil disables archiving)
	Logger     *slog.Logger
	Telemetry  *telemetry.Provider
	Retry      RetryPolicy
	Breakers   BreakerSettings
	// Concurrency bounds parallel batches; 0 means unbounded.
	Concurrency int
}

// TaskRunner drives a single task through its life cycle with retries.
type TaskRunner struct {
	tasks      TaskStore
	executions ExecutionStore
	agents     *agent.Registry
	events     EventSink
	knowledge  KnowledgeSink
	logger     *slog.Logger
	tel        *telemetry.Provider
	retry      RetryPolicy
	breakers   *CircuitBreakerRegistry
	locks      *scheduler.TaskLocks
	batch      *BatchExecutor
}

// NewTaskRunner creates a runner from cfg.
func NewTaskRunner(cfg RunnerConfig) *TaskRunner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tel := cfg.Telemetry
	if tel == nil {
		tel = telemetry.Noop()
	}
	var sink EventSink = nopEvents{}
	if cfg.Events != nil {
		sink = cfg.Events
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}
	if cfg.Retry.BaseDelay < 0 {
		cfg.Retry.BaseDelay = 0
	}

	r := &TaskRunner{
		tasks:      cfg.Tasks,
		executions: cfg.Executions,
		agents:     cfg.Agents,
		events:     sink,
		knowledge:  cfg.Knowledge,
		logger:     logger,
		tel:        tel,
		retry:      cfg.Retry,
		breakers:   NewCircuitBreakerRegistry(cfg.Breakers, logger),
		locks:      scheduler.NewTaskLocks(),
	}
	r.batch = NewBatchExecutor(r, cfg.Concurrency)
	return r
}

// Breakers exposes the per-role circuit breakers.
func (r *TaskRunner) Breakers() *CircuitBreakerRegistry {
	return r.breakers
}

// runState carries what survives between attempts of one Run invocation.
type runState struct {
	task     *scheduler.Task
	audit    *scheduler.Execution
	attempts int
}

// Run executes a task, retrying failed agent attempts with exponential backoff.
// The returned result is always populated; on failure its Status is StatusError
// and the error is also returned.
func (r *TaskRunner) Run(ctx context.Context, taskID string) (ExecutionResult, error) {
	unlock := r.locks.Lock(taskID)
	defer unlock()

	start := time.Now()
	ctx, span := r.tel.StartSpan(ctx, "task.run", telemetry.AttrTaskID.String(taskID))
	defer span.End()

	st := &runState{}
	schedule := r.retry.schedule()

	var lastErr error
	for attempt := 0; ; attempt++ {
		res, err := r.attempt(ctx, taskID, st)
		if err == nil {
			res.Duration = time.Since(start)
			r.record(ctx, res)
			span.SetAttributes(telemetry.AttrStatus.String(string(res.Status)), telemetry.AttrAttempt.Int(st.attempts))
			return res, nil
		}

		if !retryable(err) {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.failTask(context.WithoutCancel(ctx), st.task, err)
			}
			res := r.errorResult(taskID, st, err, start)
			r.record(ctx, res)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}

		lastErr = err
		if attempt >= r.retry.MaxRetries {
			break
		}

		delay := schedule.NextBackOff()
		r.logger.Warn("task attempt failed, retrying",
			"task_id", taskID,
			"attempt", attempt+1,
			"max_retries", r.retry.MaxRetries,
			"delay", delay,
			"error", err,
		)
		if err := sleepContext(ctx, delay); err != nil {
			lastErr = fmt.Errorf("retry wait interrupted: %w (last error: %v)", err, lastErr)
			break
		}
	}

	finalErr := &TaskExecutionError{TaskID: taskID, Attempts: st.attempts, Err: lastErr}
	// Record the terminal failure even if the caller's context is gone
	r.failTask(context.WithoutCancel(ctx), st.task, finalErr)
	r.logger.Error("task failed after retries", "task_id", taskID, "attempts", st.attempts, "error", lastErr)

	res := r.errorResult(taskID, st, finalErr, start)
	r.record(ctx, res)
	span.RecordError(finalErr)
	span.SetStatus(codes.Error, finalErr.Error())
	return res, finalErr
}

// attempt performs one pass of the task life cycle from a fresh load.
func (r *TaskRunner) attempt(ctx context.Context, taskID string, st *runState) (ExecutionResult, error) {
	task, err := r.tasks.GetTask(ctx, taskID)
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to load task: %w", err)
	}
	st.task = task

	if task.Status == scheduler.TaskCompleted {
		r.logger.Info("task already completed", "task_id", taskID)
		return ExecutionResult{
			TaskID:     task.ID,
			ProjectID:  task.ProjectID,
			Agent:      task.AgentRole,
			Status:     StatusAlreadyCompleted,
			Output:     task.Output,
			TokensUsed: task.ActualTokens,
		}, nil
	}

	if err := r.checkDependencies(ctx, task); err != nil {
		r.failTask(ctx, task, err)
		return ExecutionResult{}, err
	}

	startedAt := time.Now().UTC()
	if err := r.tasks.MarkInProgress(ctx, task.ID, startedAt); err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to mark task in progress: %w", err)
	}
	task.Status = scheduler.TaskInProgress
	task.StartedAt = &startedAt
	r.events.Publish(task.ProjectID, events.TaskEvent(events.TypeTaskStarted, task.ProjectID, task.ID, task.AgentRole, string(scheduler.TaskInProgress), map[string]any{
		"title":   task.Title,
		"attempt": st.attempts + 1,
	}))

	capability, ok := r.agents.Get(task.AgentRole)
	if !ok {
		cfgErr := &ConfigurationError{
			TaskID: task.ID,
			Role:   task.AgentRole,
			Reason: fmt.Sprintf("no agent registered for role %q", task.AgentRole),
		}
		r.failTask(ctx, task, cfgErr)
		return ExecutionResult{}, cfgErr
	}

	st.attempts++
	if err := r.openAudit(ctx, task, st); err != nil {
		return ExecutionResult{}, err
	}

	req := agent.Request{
		TaskID:      task.ID,
		ProjectID:   task.ProjectID,
		Role:        task.AgentRole,
		Title:       task.Title,
		Description: task.Description,
		Input:       task.Input,
	}

	invokeStart := time.Now()
	result, err := r.invoke(ctx, capability, req)
	elapsed := time.Since(invokeStart)
	r.tel.Metrics.TaskAttempts.Add(ctx, 1, metric.WithAttributes(telemetry.AttrAgentRole.String(task.AgentRole)))

	st.audit.Prompt = result.Prompt
	st.audit.Response = result.Response
	st.audit.DurationMs = elapsed.Milliseconds()
	if result.Metadata != nil {
		st.audit.Metadata = result.Metadata
	}

	if err != nil {
		st.audit.Status = scheduler.ExecutionFailed
		st.audit.Error = err.Error()
		if uerr := r.executions.UpdateExecution(ctx, st.audit); uerr != nil {
			r.logger.Warn("failed to update execution record", "task_id", task.ID, "execution_id", st.audit.ID, "error", uerr)
		}
		return ExecutionResult{}, &ExecutionError{TaskID: task.ID, Attempt: st.attempts, Err: err}
	}

	output := result.Output
	if len(output) == 0 {
		output = map[string]any{"response": result.Response}
	}

	st.audit.Status = scheduler.ExecutionCompleted
	st.audit.Error = ""
	st.audit.TokensUsed = result.TokensUsed
	if err := r.executions.UpdateExecution(ctx, st.audit); err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to update execution record: %w", err)
	}

	completedAt := time.Now().UTC()
	if err := r.tasks.CompleteTask(ctx, task.ID, output, result.TokensUsed, completedAt); err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to complete task: %w", err)
	}
	task.Status = scheduler.TaskCompleted
	task.Output = output
	task.ActualTokens = result.TokensUsed
	task.CompletedAt = &completedAt
	task.Error = ""

	r.events.Publish(task.ProjectID, events.TaskEvent(events.TypeTaskCompleted, task.ProjectID, task.ID, task.AgentRole, string(scheduler.TaskCompleted), map[string]any{
		"title":       task.Title,
		"tokens_used": result.TokensUsed,
		"attempts":    st.attempts,
		"duration_ms": elapsed.Milliseconds(),
	}))
	r.logger.Info("task completed", "task_id", task.ID, "agent", task.AgentRole, "attempts", st.attempts, "tokens_used", result.TokensUsed)

	if entry, ok := taskKnowledge(task, result.TokensUsed, elapsed); ok {
		archive(ctx, r.knowledge, r.logger, entry)
	}

	return ExecutionResult{
		TaskID:     task.ID,
		ProjectID:  task.ProjectID,
		Agent:      task.AgentRole,
		Status:     StatusSuccess,
		Output:     output,
		TokensUsed: result.TokensUsed,
		Attempts:   st.attempts,
	}, nil
}

// invoke calls the capability through the role's circuit breaker.
// A failed-status result counts as an error. Calls the breaker refuses are held
// until it lets them through, so every invoke that returns without a context
// error has reached the agent.
func (r *TaskRunner) invoke(ctx context.Context, capability agent.Capability, req agent.Request) (agent.Result, error) {
	call := func() (any, error) {
		res, err := capability.Execute(ctx, req)
		if err != nil {
			return res, err
		}
		if !res.Succeeded() {
			msg := res.Error
			if msg == "" {
				msg = "agent reported failure"
			}
			return res, errors.New(msg)
		}
		return res, nil
	}

	cb := r.breakers.Get(req.Role)
	if cb == nil {
		out, err := call()
		res, _ := out.(agent.Result)
		return res, err
	}

	for {
		out, err := cb.Execute(call)
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			res, _ := out.(agent.Result)
			return res, err
		}

		wait := r.breakers.rejectionWait(err)
		r.logger.Debug("agent circuit open, holding call", "task_id", req.TaskID, "agent", req.Role, "wait", wait)
		if serr := sleepContext(ctx, wait); serr != nil {
			return agent.Result{}, fmt.Errorf("agent %s unavailable: %w", req.Role, serr)
		}
	}
}

// openAudit creates the execution record on the first attempt and reopens it afterwards.
func (r *TaskRunner) openAudit(ctx context.Context, task *scheduler.Task, st *runState) error {
	if st.audit == nil {
		st.audit = &scheduler.Execution{
			TaskID:    task.ID,
			AgentRole: task.AgentRole,
			Status:    scheduler.ExecutionInProgress,
			Attempts:  st.attempts,
		}
		if err := r.executions.CreateExecution(ctx, st.audit); err != nil {
			st.audit = nil
			return fmt.Errorf("failed to create execution record: %w", err)
		}
		return nil
	}

	st.audit.Status = scheduler.ExecutionInProgress
	st.audit.Attempts = st.attempts
	if err := r.executions.UpdateExecution(ctx, st.audit); err != nil {
		return fmt.Errorf("failed to update execution record: %w", err)
	}
	return nil
}

// checkDependencies fails with a DependencyError unless every dependency
// exists in the same project and is completed.
func (r *TaskRunner) checkDependencies(ctx context.Context, task *scheduler.Task) error {
	deps := task.Dependencies()
	if len(deps) == 0 {
		return nil
	}

	loaded, err := r.tasks.GetTasks(ctx, deps)
	if err != nil {
		return fmt.Errorf("failed to load dependencies: %w", err)
	}
	byID := make(map[string]*scheduler.Task, len(loaded))
	for _, d := range loaded {
		byID[d.ID] = d
	}

	var unmet []UnmetDependency
	for _, id := range deps {
		d, ok := byID[id]
		switch {
		case !ok:
			unmet = append(unmet, UnmetDependency{TaskID: id, Reason: "missing"})
		case d.ProjectID != task.ProjectID:
			unmet = append(unmet, UnmetDependency{TaskID: id, Reason: "other project"})
		case d.Status != scheduler.TaskCompleted:
			unmet = append(unmet, UnmetDependency{TaskID: id, Reason: string(d.Status)})
		}
	}

	if len(unmet) > 0 {
		return &DependencyError{TaskID: task.ID, Unmet: unmet}
	}
	return nil
}

// failTask persists the failure and emits task_failed. Store errors are logged.
func (r *TaskRunner) failTask(ctx context.Context, task *scheduler.Task, cause error) {
	if task == nil {
		return
	}
	msg := cause.Error()
	output := map[string]any{"error": msg}

	if err := r.tasks.FailTask(ctx, task.ID, msg, output); err != nil {
		r.logger.Error("failed to mark task failed", "task_id", task.ID, "error", err)
	}
	task.Status = scheduler.TaskFailed
	task.Error = msg
	task.Output = output

	r.events.Publish(task.ProjectID, events.TaskEvent(events.TypeTaskFailed, task.ProjectID, task.ID, task.AgentRole, string(scheduler.TaskFailed), map[string]any{
		"title": task.Title,
		"error": msg,
	}))
	r.logger.Warn("task failed", "task_id", task.ID, "agent", task.AgentRole, "error", msg)
}

func (r *TaskRunner) errorResult(taskID string, st *runState, err error, start time.Time) ExecutionResult {
	res := ExecutionResult{
		TaskID:   taskID,
		Status:   StatusError,
		Output:   map[string]any{"error": err.Error()},
		Attempts: st.attempts,
		Err:      err,
		Duration: time.Since(start),
	}
	if st.task != nil {
		res.ProjectID = st.task.ProjectID
		res.Agent = st.task.AgentRole
	}
	return res
}

func (r *TaskRunner) record(ctx context.Context, res ExecutionResult) {
	attrs := metric.WithAttributes(
		telemetry.AttrAgentRole.String(res.Agent),
		telemetry.AttrStatus.String(string(res.Status)),
	)
	r.tel.Metrics.TaskRuns.Add(ctx, 1, attrs)
	r.tel.Metrics.TaskDuration.Record(ctx, res.Duration.Seconds(), attrs)
	if res.Status == StatusSuccess && res.TokensUsed > 0 {
		r.tel.Metrics.TokensUsed.Add(ctx, int64(res.TokensUsed), metric.WithAttributes(telemetry.AttrAgentRole.String(res.Agent)))
	}
}

// Rollback resets a task to pending, clearing its output, error, timestamps and tokens.
func (r *TaskRunner) Rollback(ctx context.Context, taskID string) error {
	unlock := r.locks.Lock(taskID)
	defer unlock()

	if err := r.tasks.ResetTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to roll back task %s: %w", taskID, err)
	}
	r.logger.Info("task rolled back", "task_id", taskID)
	return nil
}

// Retry rolls the task back and runs it again.
func (r *TaskRunner) Retry(ctx context.Context, taskID string) (ExecutionResult, error) {
	if err := r.Rollback(ctx, taskID); err != nil {
		res := ExecutionResult{TaskID: taskID, Status: StatusError, Output: map[string]any{"error": err.Error()}, Err: err}
		return res, err
	}
	return r.Run(ctx, taskID)
}

// RunBatch runs several tasks, concurrently when parallel is set, otherwise in
// the listed order. Failures become error results; the batch never stops early.
func (r *TaskRunner) RunBatch(ctx context.Context, ids []string, parallel bool) []ExecutionResult {
	if parallel {
		results, err := r.batch.Execute(ctx, ids)
		if err != nil {
			return errorResults(ids, err)
		}
		return results
	}

	results := make([]ExecutionResult, 0, len(ids))
	for _, id := range ids {
		res, _ := r.Run(ctx, id)
		results = append(results, res)
	}
	return results
}

// ListExecutions returns the audit records of a task.
func (r *TaskRunner) ListExecutions(ctx context.Context, taskID string) ([]*scheduler.Execution, error) {
	if _, err := r.tasks.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return r.executions.ListExecutions(ctx, taskID)
}

func errorResults(ids []string, err error) []ExecutionResult {
	results := make([]ExecutionResult, len(ids))
	for i, id := range ids {
		results[i] = ExecutionResult{TaskID: id, Status: StatusError, Output: map[string]any{"error": err.Error()}, Err: err}
	}
	return results
}
