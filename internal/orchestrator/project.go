package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/aristath/agency/internal/events"
	"github.com/aristath/agency/internal/scheduler"
	"github.com/aristath/agency/internal/telemetry"
)

// ProjectConfig configures a ProjectOrchestrator.
type ProjectConfig struct {
	Projects  ProjectStore // Required
	Tasks     TaskStore    // Required
	Runner    *TaskRunner  // Required
	Events    EventSink
	Knowledge KnowledgeSink
	Logger    *slog.Logger
	Telemetry *telemetry.Provider
}

// ProjectOrchestrator executes whole projects wave by wave.
type ProjectOrchestrator struct {
	projects  ProjectStore
	tasks     TaskStore
	runner    *TaskRunner
	planner   *scheduler.Planner
	events    EventSink
	knowledge KnowledgeSink
	logger    *slog.Logger
	tel       *telemetry.Provider
}

// NewProjectOrchestrator creates an orchestrator from cfg.
func NewProjectOrchestrator(cfg ProjectConfig) *ProjectOrchestrator {
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
	return &ProjectOrchestrator{
		projects:  cfg.Projects,
		tasks:     cfg.Tasks,
		runner:    cfg.Runner,
		planner:   scheduler.NewPlanner(logger),
		events:    sink,
		knowledge: cfg.Knowledge,
		logger:    logger,
		tel:       tel,
	}
}

// AgentSummary aggregates task outcomes for one agent role.
type AgentSummary struct {
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	Tokens    int      `json:"tokens"`
	TaskIDs   []string `json:"task_ids"`
}

// FailedTask describes one task that did not complete.
type FailedTask struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
	Agent  string `json:"agent"`
	Error  string `json:"error"`
}

// ProjectResult is the aggregated outcome of a project run.
type ProjectResult struct {
	ProjectID      string
	Status         scheduler.ProjectStatus
	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	SuccessRate    float64 // percentage, two decimals
	TotalTokens    int
	ByAgent        map[string]*AgentSummary
	Failed         []FailedTask
	Waves          int
	Duration       time.Duration
	Results        []ExecutionResult
}

// Map renders the result for Project.Results.
func (r *ProjectResult) Map() map[string]any {
	byAgent := make(map[string]any, len(r.ByAgent))
	for role, s := range r.ByAgent {
		byAgent[role] = map[string]any{
			"completed": s.Completed,
			"failed":    s.Failed,
			"tokens":    s.Tokens,
			"task_ids":  s.TaskIDs,
		}
	}
	failed := make([]any, len(r.Failed))
	for i, f := range r.Failed {
		failed[i] = map[string]any{
			"task_id": f.TaskID,
			"title":   f.Title,
			"agent":   f.Agent,
			"error":   f.Error,
		}
	}
	return map[string]any{
		"total_tasks":     r.TotalTasks,
		"completed_tasks": r.CompletedTasks,
		"failed_tasks":    r.FailedTasks,
		"success_rate":    r.SuccessRate,
		"total_tokens":    r.TotalTokens,
		"by_agent":        byAgent,
		"failed":          failed,
		"waves":           r.Waves,
		"duration_ms":     r.Duration.Milliseconds(),
	}
}

// Execute runs every task of a project in dependency order. Task failures do not
// abort the run; they are reflected in the result and the project's final status.
// An error is returned only for invalid state or infrastructure faults, in which
// case the project is marked failed when possible.
func (o *ProjectOrchestrator) Execute(ctx context.Context, projectID string) (*ProjectResult, error) {
	start := time.Now()
	ctx, span := o.tel.StartSpan(ctx, "project.execute", telemetry.AttrProjectID.String(projectID))
	defer span.End()

	project, err := o.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if !project.Status.Startable() {
		return nil, fmt.Errorf("project %s is %s: %w", projectID, project.Status, ErrInvalidProjectState)
	}

	startedAt := time.Now().UTC()
	project.Status = scheduler.ProjectInProgress
	project.StartedAt = &startedAt
	project.CompletedAt = nil
	project.Error = ""
	if err := o.projects.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to start project: %w", err)
	}
	o.events.Publish(projectID, events.ProjectEvent(events.TypeProjectStarted, projectID, string(scheduler.ProjectInProgress), map[string]any{
		"name": project.Name,
	}))
	o.logger.Info("project started", "project_id", projectID, "name", project.Name)

	result, err := o.run(ctx, project)
	if err != nil {
		o.abort(context.WithoutCancel(ctx), project, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result.Duration = time.Since(start)

	completedAt := time.Now().UTC()
	project.Status = result.Status
	project.CompletedAt = &completedAt
	project.Results = result.Map()
	if result.Status != scheduler.ProjectCompleted {
		project.Error = fmt.Sprintf("%d of %d tasks failed", result.FailedTasks, result.TotalTasks)
	}
	if err := o.projects.UpdateProject(context.WithoutCancel(ctx), project); err != nil {
		return nil, fmt.Errorf("failed to finish project: %w", err)
	}

	tasks, err := o.tasks.ListProjectTasks(context.WithoutCancel(ctx), projectID)
	if err != nil {
		o.logger.Warn("failed to reload tasks for summary", "project_id", projectID, "error", err)
	}
	archive(ctx, o.knowledge, o.logger, projectKnowledge(project, tasks, result))

	evType := events.TypeProjectCompleted
	if result.Status != scheduler.ProjectCompleted {
		evType = events.TypeProjectFailed
	}
	o.events.Publish(projectID, events.ProjectEvent(evType, projectID, string(result.Status), project.Results))

	attrs := metric.WithAttributes(telemetry.AttrStatus.String(string(result.Status)))
	o.tel.Metrics.ProjectRuns.Add(ctx, 1, attrs)
	o.tel.Metrics.ProjectDuration.Record(ctx, result.Duration.Seconds(), attrs)
	span.SetAttributes(telemetry.AttrStatus.String(string(result.Status)), telemetry.AttrWaves.Int(result.Waves))

	o.logger.Info("project finished",
		"project_id", projectID,
		"status", result.Status,
		"completed", result.CompletedTasks,
		"failed", result.FailedTasks,
		"tokens", result.TotalTokens,
		"duration", result.Duration,
	)
	return result, nil
}

// run plans and executes the waves, then aggregates the outcome.
func (o *ProjectOrchestrator) run(ctx context.Context, project *scheduler.Project) (*ProjectResult, error) {
	tasks, err := o.tasks.ListProjectTasks(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	result := &ProjectResult{
		ProjectID:  project.ID,
		TotalTasks: len(tasks),
		ByAgent:    make(map[string]*AgentSummary),
	}
	if len(tasks) == 0 {
		result.Status = scheduler.ProjectCompleted
		return result, nil
	}

	waves := o.planner.Plan(tasks)
	result.Waves = len(waves)

	byID := make(map[string]*scheduler.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	for i, wave := range waves {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("project interrupted before wave %d: %w", i+1, err)
		}

		o.logger.Info("executing wave", "project_id", project.ID, "wave", i+1, "total_waves", len(waves), "tasks", len(wave))
		results, err := o.runner.batch.Execute(ctx, wave)
		if err != nil {
			return nil, fmt.Errorf("failed to execute wave %d: %w", i+1, err)
		}
		o.tel.Metrics.WavesExecuted.Add(ctx, 1)

		for _, res := range results {
			result.Results = append(result.Results, res)
			o.tally(result, byID[res.TaskID], res)
		}

		o.events.Publish(project.ID, events.ProgressEvent(project.ID, events.Progress{
			Wave:        i + 1,
			TotalWaves:  len(waves),
			TasksDone:   result.CompletedTasks,
			TasksFailed: result.FailedTasks,
			TotalTasks:  result.TotalTasks,
		}))
	}

	result.SuccessRate = percentage(result.CompletedTasks, result.TotalTasks)
	switch {
	case result.FailedTasks == 0:
		result.Status = scheduler.ProjectCompleted
	case result.CompletedTasks > 0:
		result.Status = scheduler.ProjectReview
	default:
		result.Status = scheduler.ProjectFailed
	}
	return result, nil
}

func (o *ProjectOrchestrator) tally(result *ProjectResult, task *scheduler.Task, res ExecutionResult) {
	role := res.Agent
	title := ""
	if task != nil {
		title = task.Title
		if role == "" {
			role = task.AgentRole
		}
	}

	summary, ok := result.ByAgent[role]
	if !ok {
		summary = &AgentSummary{}
		result.ByAgent[role] = summary
	}
	summary.TaskIDs = append(summary.TaskIDs, res.TaskID)

	if res.Succeeded() {
		result.CompletedTasks++
		result.TotalTokens += res.TokensUsed
		summary.Completed++
		summary.Tokens += res.TokensUsed
		return
	}

	result.FailedTasks++
	summary.Failed++
	result.Failed = append(result.Failed, FailedTask{
		TaskID: res.TaskID,
		Title:  title,
		Agent:  role,
		Error:  res.ErrorMessage(),
	})
}

// abort marks the project failed after an infrastructure fault.
func (o *ProjectOrchestrator) abort(ctx context.Context, project *scheduler.Project, cause error) {
	completedAt := time.Now().UTC()
	project.Status = scheduler.ProjectFailed
	project.Error = cause.Error()
	project.CompletedAt = &completedAt
	if err := o.projects.UpdateProject(ctx, project); err != nil {
		o.logger.Error("failed to mark project failed", "project_id", project.ID, "error", err)
	}
	o.events.Publish(project.ID, events.ProjectEvent(events.TypeProjectFailed, project.ID, string(scheduler.ProjectFailed), map[string]any{
		"error": cause.Error(),
	}))
	o.logger.Error("project execution failed", "project_id", project.ID, "error", cause)
}

func percentage(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 100
}
