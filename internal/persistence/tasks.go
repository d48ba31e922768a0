package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/agency/internal/scheduler"
	"github.com/google/uuid"
)

const taskColumns = `id, project_id, title, description, agent_role, status, priority,
	estimated_tokens, actual_tokens, input, output, error,
	created_at, started_at, completed_at, updated_at`

// SaveTask saves or updates a task and its dependencies.
// Uses ON CONFLICT to make saves idempotent. A missing ID is generated.
func (s *SQLiteStore) SaveTask(ctx context.Context, task *scheduler.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = scheduler.TaskPending
	}
	if task.Priority == "" {
		task.Priority = scheduler.PriorityNormal
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	input, err := encodeJSON(task.Input)
	if err != nil {
		return err
	}
	output, err := encodeJSON(task.Output)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (`+taskColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				project_id = excluded.project_id,
				title = excluded.title,
				description = excluded.description,
				agent_role = excluded.agent_role,
				status = excluded.status,
				priority = excluded.priority,
				estimated_tokens = excluded.estimated_tokens,
				actual_tokens = excluded.actual_tokens,
				input = excluded.input,
				output = excluded.output,
				error = excluded.error,
				started_at = excluded.started_at,
				completed_at = excluded.completed_at,
				updated_at = excluded.updated_at
		`, task.ID, task.ProjectID, task.Title, task.Description, task.AgentRole, string(task.Status), string(task.Priority),
			task.EstimatedTokens, task.ActualTokens, input, output, task.Error,
			formatTime(task.CreatedAt), formatTimePtr(task.StartedAt), formatTimePtr(task.CompletedAt), formatTime(task.UpdatedAt))
		if err != nil {
			return fmt.Errorf("failed to upsert task: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM task_dependencies WHERE task_id = ?`, task.ID); err != nil {
			return fmt.Errorf("failed to delete old dependencies: %w", err)
		}

		for i, depID := range task.Dependencies() {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO task_dependencies (task_id, depends_on_id, position)
				VALUES (?, ?, ?)
			`, task.ID, depID, i)
			if err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", task.ID, depID, err)
			}
		}
		return nil
	})
}

// GetTask retrieves a task by ID, including its dependencies.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*scheduler.Task, error) {
	tasks, err := s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, taskID)
	}
	return tasks[0], nil
}

// ListProjectTasks returns a project's tasks in creation order.
func (s *SQLiteStore) ListProjectTasks(ctx context.Context, projectID string) ([]*scheduler.Task, error) {
	return s.queryTasks(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = ?
		ORDER BY created_at, rowid
	`, projectID)
}

// GetTasks loads the tasks with the given IDs. Unknown IDs are omitted.
func (s *SQLiteStore) GetTasks(ctx context.Context, ids []string) ([]*scheduler.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id IN (`+placeholders+`) ORDER BY created_at, rowid`, args...)
}

// MarkInProgress moves a task to in_progress and stamps StartedAt.
func (s *SQLiteStore) MarkInProgress(ctx context.Context, taskID string, startedAt time.Time) error {
	return s.updateTask(ctx, taskID, `
		UPDATE tasks
		SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ?
	`, string(scheduler.TaskInProgress), formatTime(startedAt), formatTime(time.Now()), taskID)
}

// CompleteTask stores the output and actual tokens and marks the task completed.
func (s *SQLiteStore) CompleteTask(ctx context.Context, taskID string, output map[string]any, actualTokens int, completedAt time.Time) error {
	encoded, err := encodeJSON(output)
	if err != nil {
		return err
	}
	return s.updateTask(ctx, taskID, `
		UPDATE tasks
		SET status = ?, output = ?, actual_tokens = ?, error = '', completed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(scheduler.TaskCompleted), encoded, actualTokens, formatTime(completedAt), formatTime(time.Now()), taskID)
}

// FailTask marks the task failed with reason, recording output alongside it.
func (s *SQLiteStore) FailTask(ctx context.Context, taskID string, reason string, output map[string]any) error {
	encoded, err := encodeJSON(output)
	if err != nil {
		return err
	}
	return s.updateTask(ctx, taskID, `
		UPDATE tasks
		SET status = ?, output = ?, error = ?, updated_at = ?
		WHERE id = ?
	`, string(scheduler.TaskFailed), encoded, reason, formatTime(time.Now()), taskID)
}

// ResetTask returns a task to pending and clears everything a run produced.
func (s *SQLiteStore) ResetTask(ctx context.Context, taskID string) error {
	return s.updateTask(ctx, taskID, `
		UPDATE tasks
		SET status = ?, output = NULL, error = '', actual_tokens = 0,
			started_at = NULL, completed_at = NULL, updated_at = ?
		WHERE id = ?
	`, string(scheduler.TaskPending), formatTime(time.Now()), taskID)
}

func (s *SQLiteStore) updateTask(ctx context.Context, taskID, query string, args ...any) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("%w: %s", scheduler.ErrTaskNotFound, taskID)
		}
		return nil
	})
}

// queryTasks scans every task row first and loads dependencies afterwards,
// so no two result sets are open on the single connection.
func (s *SQLiteStore) queryTasks(ctx context.Context, query string, args ...any) ([]*scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	var tasks []*scheduler.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	rows.Close()

	if err := s.loadDependencies(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *SQLiteStore) loadDependencies(ctx context.Context, tasks []*scheduler.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*scheduler.Task, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		t.DependsOn = []string{}
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	placeholders, args := inClause(ids)
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, depends_on_id
		FROM task_dependencies
		WHERE task_id IN (`+placeholders+`)
		ORDER BY task_id, position
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, depID string
		if err := rows.Scan(&taskID, &depID); err != nil {
			return fmt.Errorf("failed to scan dependency: %w", err)
		}
		if t, ok := byID[taskID]; ok {
			t.DependsOn = append(t.DependsOn, depID)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating dependencies: %w", err)
	}
	return nil
}

func scanTask(row rowScanner) (*scheduler.Task, error) {
	var (
		task                   scheduler.Task
		status, priority       string
		input, output          sql.NullString
		createdAt, updatedAt   string
		startedAt, completedAt sql.NullString
	)

	err := row.Scan(&task.ID, &task.ProjectID, &task.Title, &task.Description, &task.AgentRole, &status, &priority,
		&task.EstimatedTokens, &task.ActualTokens, &input, &output, &task.Error,
		&createdAt, &startedAt, &completedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scheduler.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	task.Status = scheduler.TaskStatus(status)
	if !task.Status.Valid() {
		return nil, fmt.Errorf("task %s has unknown status %q", task.ID, status)
	}
	task.Priority = scheduler.Priority(priority)

	if task.Input, err = decodeMap(input); err != nil {
		return nil, err
	}
	if task.Output, err = decodeMap(output); err != nil {
		return nil, err
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if task.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, err
	}
	if task.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}

	return &task, nil
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
