// Package generator turns an evidence bundle into the final answer text.
package generator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pardeepwalia007/Assignment-RAG/internal/retrieval"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
)

const (
	LabelStructured = "SQL Only"
	LabelHybrid     = "Hybrid (Docs + SQL)"
	LabelDocuments  = "Docs Only"
)

// SourceLabel names the evidence source for a mode.
func SourceLabel(mode router.Mode) string {
	switch mode {
	case router.ModeStructuredOnly:
		return LabelStructured
	case router.ModeHybrid:
		return LabelHybrid
	case router.ModeDocumentOnly:
		return LabelDocuments
	default:
		return LabelDocuments
	}
}

// Evidence is everything gathered for one question. It is built once per
// request and consumed by a single Generate call.
type Evidence struct {
	Question      string
	Mode          router.Mode
	SourceLabel   string
	Passages      []retrieval.Passage
	SQL           string
	Columns       []string
	Rows          [][]any
	TotalRows     int
	Schema        string
	BusinessTerms []string
	Error         string
}

func (e Evidence) HasStructured() bool {
	return len(e.Columns) > 0
}

type Generator interface {
	Generate(ctx context.Context, evidence Evidence) (string, error)
}

// StructuredBlock renders the result preview the way the prompt expects it.
func (e Evidence) StructuredBlock() string {
	if len(e.Rows) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[SQL_RESULT]\n")
	fmt.Fprintf(&b, "COLUMNS: %s\n", strings.Join(e.Columns, ", "))
	for _, row := range e.Rows {
		values := make([]string, 0, len(row))
		for _, value := range row {
			values = append(values, FormatValue(value))
		}
		fmt.Fprintf(&b, "ROW: %s\n", strings.Join(values, ", "))
	}
	if e.TotalRows > len(e.Rows) {
		fmt.Fprintf(&b, "(showing %d of %d rows)\n", len(e.Rows), e.TotalRows)
	}
	return b.String()
}

// FormatValue renders a scanned database value for display.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format(time.DateOnly)
		}
		return typed.Format(time.DateTime)
	default:
		return fmt.Sprint(typed)
	}
}
