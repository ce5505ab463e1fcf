package query

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotReadOnly is returned for statements other than SELECT or WITH.
var ErrNotReadOnly = errors.New("only read-only SELECT/WITH queries are allowed")

type Request struct {
	SQL      string
	RowLimit int
}

// Result holds at most RowLimit rows. TotalRows counts every row the query
// produced.
type Result struct {
	Columns   []string
	Rows      [][]any
	TotalRows int
	Truncated bool
	Duration  time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

func IsReadOnly(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if normalized == "" {
		return false
	}
	if strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with") {
		return true
	}
	return false
}

// Preview returns the first n rows of the result.
func (r Result) Preview(n int) [][]any {
	if n <= 0 || len(r.Rows) <= n {
		return r.Rows
	}
	return r.Rows[:n]
}
