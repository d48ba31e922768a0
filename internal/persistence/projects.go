package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/agency/internal/scheduler"
	"github.com/google/uuid"
)

const projectColumns = `id, name, description, status, priority, results, error,
	created_at, started_at, completed_at, updated_at`

// SaveProject inserts or updates a project. A missing ID is generated.
func (s *SQLiteStore) SaveProject(ctx context.Context, p *scheduler.Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = scheduler.ProjectDraft
	}
	if p.Priority == "" {
		p.Priority = scheduler.PriorityNormal
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	results, err := encodeJSON(p.Results)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			results = excluded.results,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.Description, string(p.Status), string(p.Priority), results, p.Error,
		formatTime(p.CreatedAt), formatTimePtr(p.StartedAt), formatTimePtr(p.CompletedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// UpdateProject writes the mutable fields of an existing project.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *scheduler.Project) error {
	results, err := encodeJSON(p.Results)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET status = ?, results = ?, error = ?, started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(p.Status), results, p.Error, formatTimePtr(p.StartedAt), formatTimePtr(p.CompletedAt), formatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", scheduler.ErrProjectNotFound, p.ID)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (*scheduler.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, projectID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrProjectNotFound, projectID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects returns all projects, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*scheduler.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*scheduler.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

func scanProject(row rowScanner) (*scheduler.Project, error) {
	var (
		p                      scheduler.Project
		status, priority       string
		results                sql.NullString
		createdAt, updatedAt   string
		startedAt, completedAt sql.NullString
	)

	err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &priority, &results, &p.Error,
		&createdAt, &startedAt, &completedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.Status = scheduler.ProjectStatus(status)
	p.Priority = scheduler.Priority(priority)

	if p.Results, err = decodeMap(results); err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if p.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, err
	}
	if p.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}

	return &p, nil
}
