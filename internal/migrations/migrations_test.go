package migrations

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
)

func twoScripts() fstest.MapFS {
	return fstest.MapFS{
		"sql/000002_sessions.up.sql":   {Data: []byte("SELECT 2;")},
		"sql/000002_sessions.down.sql": {Data: []byte("SELECT -2;")},
		"sql/000001_ask_log.up.sql":    {Data: []byte("SELECT 1;")},
		"sql/000001_ask_log.down.sql":  {Data: []byte("SELECT -1;")},
		"sql/README.md":                {Data: []byte("ignored")},
	}
}

func checksumOf(up string) string {
	return script{up: up}.checksum()
}

func expectHistory(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS biagent_schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, checksum, applied_at FROM biagent_schema_migrations")).
		WillReturnRows(rows)
}

func historyRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"version", "checksum", "applied_at"})
}

func TestLoadScriptsPairsAndSorts(t *testing.T) {
	scripts, err := loadScripts(twoScripts())
	if err != nil {
		t.Fatalf("loadScripts() error = %v", err)
	}
	got := []string{}
	for _, s := range scripts {
		got = append(got, s.name+":"+s.up+"|"+s.down)
	}
	want := []string{"ask_log:SELECT 1;|SELECT -1;", "sessions:SELECT 2;|SELECT -2;"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("scripts mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadScriptsRejectsIncompletePairs(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"missing down SQL": {"sql/000001_one.up.sql": {Data: []byte("SELECT 1;")}},
		"missing up SQL":   {"sql/000001_one.down.sql": {Data: []byte("SELECT 1;")}},
		"conflicting names": {
			"sql/000001_one.up.sql":   {Data: []byte("SELECT 1;")},
			"sql/000001_two.down.sql": {Data: []byte("SELECT -1;")},
		},
	}
	for want, fsys := range tests {
		_, err := loadScripts(fsys)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("loadScripts() error = %v, want %q", err, want)
		}
	}
}

func TestStatusReportsAppliedPendingAndDrift(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	appliedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expectHistory(mock, historyRows().AddRow(int64(1), "stale", appliedAt))

	statuses, err := NewRunnerFS(twoScripts()).Status(context.Background(), db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	want := []Status{
		{Version: 1, Name: "ask_log", Applied: true, AppliedAt: appliedAt, Drifted: true},
		{Version: 2, Name: "sessions"},
	}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Fatalf("status mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestUpAppliesOnlyPendingScripts(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	expectHistory(mock, historyRows().AddRow(int64(1), checksumOf("SELECT 1;"), time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT 2;")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO biagent_schema_migrations (version, name, checksum) VALUES ($1, $2, $3)")).
		WithArgs(int64(2), "sessions", checksumOf("SELECT 2;")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := NewRunnerFS(twoScripts()).Up(context.Background(), db, 0)
	if err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("Up() applied = %d, want 1", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestUpRefusesDriftedHistory(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	expectHistory(mock, historyRows().AddRow(int64(1), "edited", time.Now()))

	applied, err := NewRunnerFS(twoScripts()).Up(context.Background(), db, 0)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Up() error = %v, want ErrChecksumMismatch", err)
	}
	if applied != 0 {
		t.Fatalf("Up() applied = %d", applied)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestDownRevertsNewestFirstAndRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	expectHistory(mock, historyRows().
		AddRow(int64(1), checksumOf("SELECT 1;"), time.Now()).
		AddRow(int64(2), checksumOf("SELECT 2;"), time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT -2;")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM biagent_schema_migrations WHERE version = $1")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT -1;")).WillReturnError(errors.New("table is locked"))
	mock.ExpectRollback()

	reverted, err := NewRunnerFS(twoScripts()).Down(context.Background(), db, 2)
	if err == nil || !strings.Contains(err.Error(), "revert migration 1 (ask_log)") {
		t.Fatalf("Down() error = %v", err)
	}
	if reverted != 1 {
		t.Fatalf("Down() reverted = %d, want 1", reverted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
