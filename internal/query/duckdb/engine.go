package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/pardeepwalia007/Assignment-RAG/internal/query"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
)

// ErrMissingJoinKey is returned by CreateJoinView when either side lacks the key.
var ErrMissingJoinKey = errors.New("join key missing")

type Format int

const (
	FormatCSV Format = iota
	FormatParquet
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatParquet:
		return "parquet"
	default:
		return "unknown"
	}
}

func (f Format) extension() string {
	switch f {
	case FormatParquet:
		return ".parquet"
	default:
		return ".csv"
	}
}

// Engine is one in-memory DuckDB database. Imported files are staged in
// workDir, which the engine does not own.
type Engine struct {
	db      *sql.DB
	workDir string
}

func Open(ctx context.Context, workDir string) (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Engine{db: db, workDir: workDir}, nil
}

func (e *Engine) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}

// LoadTable materializes a CSV or Parquet file as a table.
func (e *Engine) LoadTable(ctx context.Context, name, path string, format Format) error {
	var reader string
	switch format {
	case FormatCSV:
		reader = "read_csv_auto"
	case FormatParquet:
		reader = "read_parquet"
	default:
		return fmt.Errorf("unsupported table format %d", format)
	}
	stmt := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM %s(%s)`, quoteIdent(name), reader, quoteString(path))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("load table %q from %s: %w", name, format, err)
	}
	return nil
}

// ImportTable stages the reader's bytes in the work directory and loads them.
func (e *Engine) ImportTable(ctx context.Context, name string, body io.Reader, format Format) (string, error) {
	if strings.TrimSpace(e.workDir) == "" {
		return "", fmt.Errorf("work dir is required to import %q", name)
	}
	localPath := filepath.Join(e.workDir, sanitizeFileComponent(name)+format.extension())
	if err := writeFile(localPath, body); err != nil {
		return "", fmt.Errorf("write local file %q: %w", localPath, err)
	}
	if err := e.LoadTable(ctx, name, localPath, format); err != nil {
		return "", err
	}
	return localPath, nil
}

// CreateJoinView creates a LEFT JOIN view of left and right on key. Right
// columns that collide with left names are prefixed with the right table name.
func (e *Engine) CreateJoinView(ctx context.Context, view, left, right, key string) error {
	leftColumns, err := e.Describe(ctx, left)
	if err != nil {
		return err
	}
	rightColumns, err := e.Describe(ctx, right)
	if err != nil {
		return err
	}
	leftKey, ok := findColumn(leftColumns, key)
	if !ok {
		return fmt.Errorf("%w: %q not in %s", ErrMissingJoinKey, key, left)
	}
	rightKey, ok := findColumn(rightColumns, key)
	if !ok {
		return fmt.Errorf("%w: %q not in %s", ErrMissingJoinKey, key, right)
	}

	taken := make(map[string]bool, len(leftColumns)+len(rightColumns))
	selected := make([]string, 0, len(leftColumns)+len(rightColumns))
	for _, column := range leftColumns {
		taken[strings.ToLower(column.Name)] = true
		selected = append(selected, "l."+quoteIdent(column.Name))
	}
	for _, column := range rightColumns {
		if column.Name == rightKey {
			continue
		}
		if !taken[strings.ToLower(column.Name)] {
			taken[strings.ToLower(column.Name)] = true
			selected = append(selected, "r."+quoteIdent(column.Name))
			continue
		}
		alias := right + "_" + column.Name
		taken[strings.ToLower(alias)] = true
		selected = append(selected, fmt.Sprintf("r.%s AS %s", quoteIdent(column.Name), quoteIdent(alias)))
	}

	stmt := fmt.Sprintf(
		`CREATE OR REPLACE VIEW %s AS SELECT %s FROM %s AS l LEFT JOIN %s AS r ON l.%s = r.%s`,
		quoteIdent(view),
		strings.Join(selected, ", "),
		quoteIdent(left),
		quoteIdent(right),
		quoteIdent(leftKey),
		quoteIdent(rightKey),
	)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create join view %q: %w", view, err)
	}
	return nil
}

// Describe lists a table's or view's columns in declaration order.
func (e *Engine) Describe(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ? ORDER BY ordinal_position`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("describe %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]schema.Column, 0)
	for rows.Next() {
		var column schema.Column
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return nil, fmt.Errorf("scan column of %q: %w", table, err)
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns of %q: %w", table, err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return columns, nil
}

// DistinctValues returns up to limit distinct non-null values of column as
// text. complete is false when the column has more than limit values.
func (e *Engine) DistinctValues(ctx context.Context, table, column string, limit int) (values []string, complete bool, err error) {
	if limit <= 0 {
		return nil, false, fmt.Errorf("limit must be > 0")
	}
	stmt := fmt.Sprintf(
		`SELECT DISTINCT CAST(%[1]s AS VARCHAR) AS v FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY v LIMIT %[3]d`,
		quoteIdent(column), quoteIdent(table), limit+1,
	)
	rows, err := e.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, false, fmt.Errorf("distinct values of %s.%s: %w", table, column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, false, fmt.Errorf("scan distinct value: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate distinct values: %w", err)
	}
	if len(values) > limit {
		return values[:limit], false, nil
	}
	return values, true, nil
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if !query.IsReadOnly(sqlText) {
		return query.Result{}, query.ErrNotReadOnly
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	total := 0
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		total++
		if request.RowLimit > 0 && len(resultRows) >= request.RowLimit {
			continue
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		TotalRows: total,
		Truncated: total > len(resultRows),
		Duration:  time.Since(start),
	}, nil
}

func findColumn(columns []schema.Column, name string) (string, bool) {
	for _, column := range columns {
		if strings.EqualFold(column.Name, name) {
			return column.Name, true
		}
	}
	return "", false
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

var _ schema.Describer = (*Engine)(nil)
var _ query.Engine = (*Engine)(nil)
