package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/pardeepwalia007/Assignment-RAG/internal/audit"
)

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), DBConfig{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestRecordAsk(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO ask_log (session_id, trace_id, question, mode, execution_status, sql_text, row_count, passage_count, error_text, answer, latency_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)).
		WithArgs("s-1", "trace-1", "how many open tickets", "structured_only", "succeeded", "SELECT 1", 1, 0, "", "[SQL Only]\n2", int64(12)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.RecordAsk(context.Background(), audit.Entry{
		SessionID:       "s-1",
		TraceID:         "trace-1",
		Question:        "how many open tickets",
		Mode:            "structured_only",
		ExecutionStatus: "succeeded",
		SQL:             "SELECT 1",
		RowCount:        1,
		Answer:          "[SQL Only]\n2",
		LatencyMs:       12,
	})
	if err != nil {
		t.Fatalf("RecordAsk() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestRecordAskWrapsErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ask_log")).WillReturnError(sql.ErrConnDone)

	err := repo.RecordAsk(context.Background(), audit.Entry{SessionID: "s-1"})
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("RecordAsk() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestListBySession(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	columns := []string{"ask_id", "session_id", "trace_id", "question", "mode", "execution_status", "sql_text", "row_count", "passage_count", "error_text", "answer", "latency_ms", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM ask_log\nWHERE session_id = $1")).
		WithArgs("s-1", defaultListLimit).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(2), "s-1", "", "refund policy?", "document_only", "skipped", "", 0, 2, "", "[Docs Only]\n...", int64(5), now).
			AddRow(int64(1), "s-1", "", "how many tickets", "structured_only", "succeeded", "SELECT 1", 1, 0, "", "[SQL Only]\n3", int64(9), now.Add(-time.Minute)))

	entries, err := repo.ListBySession(context.Background(), "s-1", 0)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d", len(entries))
	}
	if entries[0].ID != 2 || entries[0].Mode != "document_only" || entries[0].PassageCount != 2 {
		t.Fatalf("entries[0] = %+v", entries[0])
	}
	if !entries[1].CreatedAt.Equal(now.Add(-time.Minute)) {
		t.Fatalf("entries[1].CreatedAt = %v", entries[1].CreatedAt)
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
