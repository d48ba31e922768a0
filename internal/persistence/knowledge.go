package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/agency/internal/knowledge"
	"github.com/google/uuid"
)

// Store archives a knowledge entry.
func (s *SQLiteStore) Store(ctx context.Context, entry knowledge.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tags, err := encodeJSON(entry.Tags)
	if err != nil {
		return err
	}
	metadata, err := encodeJSON(entry.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_entries (id, title, content, content_type, source_type, source_id,
			agent_type, tags, metadata, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Title, entry.Content, entry.ContentType, entry.SourceType, entry.SourceID,
		entry.AgentType, tags, metadata, entry.TokenCount, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to store knowledge entry: %w", err)
	}
	return nil
}

// ListKnowledge returns the entries archived for a source, oldest first.
func (s *SQLiteStore) ListKnowledge(ctx context.Context, sourceType, sourceID string) ([]knowledge.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, content_type, source_type, source_id, agent_type, tags, metadata, token_count, created_at
		FROM knowledge_entries
		WHERE source_type = ? AND source_id = ?
		ORDER BY created_at, rowid
	`, sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge: %w", err)
	}
	defer rows.Close()

	var out []knowledge.Entry
	for rows.Next() {
		var (
			e              knowledge.Entry
			tags, metadata sql.NullString
			createdAt      string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Content, &e.ContentType, &e.SourceType, &e.SourceID,
			&e.AgentType, &tags, &metadata, &e.TokenCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		if e.Tags, err = decodeStrings(tags); err != nil {
			return nil, err
		}
		if e.Metadata, err = decodeMap(metadata); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge: %w", err)
	}
	return out, nil
}
