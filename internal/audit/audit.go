// Package audit keeps a log of answered questions.
package audit

import (
	"context"
	"time"
)

// Entry is one answered question.
type Entry struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	TraceID         string    `json:"trace_id,omitempty"`
	Question        string    `json:"question"`
	Mode            string    `json:"mode"`
	ExecutionStatus string    `json:"execution_status"`
	SQL             string    `json:"sql,omitempty"`
	RowCount        int       `json:"row_count"`
	PassageCount    int       `json:"passage_count"`
	Error           string    `json:"error,omitempty"`
	Answer          string    `json:"answer"`
	LatencyMs       int64     `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

type Recorder interface {
	RecordAsk(ctx context.Context, entry Entry) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]Entry, error)
}

// Nop discards entries.
type Nop struct{}

func (Nop) RecordAsk(context.Context, Entry) error { return nil }

func (Nop) ListBySession(context.Context, string, int) ([]Entry, error) { return []Entry{}, nil }
