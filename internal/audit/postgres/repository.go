package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pardeepwalia007/Assignment-RAG/internal/audit"
)

const defaultListLimit = 50

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ audit.Recorder = (*Repository)(nil)

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping audit db: %w", err)
	}
	return nil
}

func (r *Repository) RecordAsk(ctx context.Context, entry audit.Entry) error {
	query := `
INSERT INTO ask_log (session_id, trace_id, question, mode, execution_status, sql_text, row_count, passage_count, error_text, answer, latency_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query,
		entry.SessionID,
		entry.TraceID,
		entry.Question,
		entry.Mode,
		entry.ExecutionStatus,
		entry.SQL,
		entry.RowCount,
		entry.PassageCount,
		entry.Error,
		entry.Answer,
		entry.LatencyMs,
	); err != nil {
		return fmt.Errorf("record ask: %w", err)
	}
	return nil
}

// ListBySession returns a session's entries, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT ask_id, session_id, trace_id, question, mode, execution_status, sql_text, row_count, passage_count, error_text, answer, latency_ms, created_at
FROM ask_log
WHERE session_id = $1
ORDER BY created_at DESC, ask_id DESC
LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list asks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]audit.Entry, 0)
	for rows.Next() {
		var entry audit.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.TraceID,
			&entry.Question,
			&entry.Mode,
			&entry.ExecutionStatus,
			&entry.SQL,
			&entry.RowCount,
			&entry.PassageCount,
			&entry.Error,
			&entry.Answer,
			&entry.LatencyMs,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ask: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asks: %w", err)
	}
	return entries, nil
}
