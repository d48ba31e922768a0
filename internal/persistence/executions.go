package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/agency/internal/scheduler"
	"github.com/google/uuid"
)

// CreateExecution inserts a new audit record, assigning its ID and timestamps.
func (s *SQLiteStore) CreateExecution(ctx context.Context, e *scheduler.Execution) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	metadata, err := encodeJSON(e.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_executions (id, task_id, agent_role, prompt, response, tokens_used, duration_ms,
			status, error, attempts, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TaskID, e.AgentRole, e.Prompt, e.Response, e.TokensUsed, e.DurationMs,
		string(e.Status), e.Error, e.Attempts, metadata, formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

// UpdateExecution overwrites the mutable fields of an existing audit record.
func (s *SQLiteStore) UpdateExecution(ctx context.Context, e *scheduler.Execution) error {
	metadata, err := encodeJSON(e.Metadata)
	if err != nil {
		return err
	}
	e.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE agent_executions
		SET prompt = ?, response = ?, tokens_used = ?, duration_ms = ?, status = ?, error = ?,
			attempts = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, e.Prompt, e.Response, e.TokensUsed, e.DurationMs, string(e.Status), e.Error,
		e.Attempts, metadata, formatTime(e.UpdatedAt), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("execution not found: %s", e.ID)
	}
	return nil
}

// ListExecutions returns the audit records of a task, oldest first.
func (s *SQLiteStore) ListExecutions(ctx context.Context, taskID string) ([]*scheduler.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, agent_role, prompt, response, tokens_used, duration_ms,
			status, error, attempts, metadata, created_at, updated_at
		FROM agent_executions
		WHERE task_id = ?
		ORDER BY created_at, rowid
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var out []*scheduler.Execution
	for rows.Next() {
		var (
			e                    scheduler.Execution
			status               string
			metadata             sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.AgentRole, &e.Prompt, &e.Response, &e.TokensUsed, &e.DurationMs,
			&status, &e.Error, &e.Attempts, &metadata, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		e.Status = scheduler.ExecutionStatus(status)
		if e.Metadata, err = decodeMap(metadata); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return out, nil
}
