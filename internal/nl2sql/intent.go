package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/pardeepwalia007/Assignment-RAG/internal/intent"
)

const percentageAlias = "percentage"

// IntentTranslator renders a QueryIntent as DuckDB SQL without a model.
type IntentTranslator struct{}

func NewIntentTranslator() *IntentTranslator {
	return &IntentTranslator{}
}

func (t *IntentTranslator) Translate(_ context.Context, req Request) (Result, error) {
	sql, err := BuildSQL(req)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: sql, Provider: "intent", Model: "rules"}, nil
}

// BuildSQL renders the intent of req against its relation.
func BuildSQL(req Request) (string, error) {
	q := req.Intent
	if !q.Executable() {
		return "", ErrNotExecutable
	}
	table := strings.TrimSpace(q.Table)
	if table == "" {
		table = req.Relation.Table
	}
	if table == "" {
		return "", fmt.Errorf("table is required")
	}
	if err := checkColumns(req); err != nil {
		return "", err
	}

	predicates := make([]string, 0, len(q.Filters))
	for _, filter := range q.Filters {
		predicate, err := renderFilter(filter)
		if err != nil {
			return "", err
		}
		predicates = append(predicates, predicate)
	}

	var selected, grouped, ordered []string
	if q.TimeGrain != intent.GrainNone {
		bucket := fmt.Sprintf("date_trunc('%s', %s)", q.TimeGrain, quoteIdent(q.TimeColumn))
		selected = append(selected, bucket+" AS "+quoteIdent(intent.PeriodAlias))
		grouped = append(grouped, bucket)
	}
	for _, column := range q.GroupBy {
		selected = append(selected, quoteIdent(column))
		grouped = append(grouped, quoteIdent(column))
	}

	where := predicates
	if q.Aggregation == intent.AggNone {
		if len(q.Columns) == 0 {
			selected = append(selected, "*")
		}
		for _, column := range q.Columns {
			selected = append(selected, quoteIdent(column))
		}
	} else {
		alias := quoteIdent(q.MetricAlias())
		metric := metricExpr(q, "")
		switch {
		case q.Percentages && len(grouped) > 0:
			selected = append(selected,
				metric+" AS "+alias,
				fmt.Sprintf("ROUND(100.0 * %s / NULLIF(SUM(%s) OVER (), 0), 2) AS %s", metric, metric, quoteIdent(percentageAlias)),
			)
		case q.Percentages && q.Aggregation == intent.AggCount && len(predicates) > 0:
			condition := strings.Join(predicates, " AND ")
			part := metricExpr(q, condition)
			selected = append(selected,
				part+" AS "+alias,
				metric+" AS "+quoteIdent("total"),
				fmt.Sprintf("ROUND(100.0 * %s / NULLIF(%s, 0), 2) AS %s", part, metric, quoteIdent(percentageAlias)),
			)
			where = nil
		default:
			selected = append(selected, metric+" AS "+alias)
		}
	}

	switch {
	case q.OrderBy == intent.PeriodAlias:
		ordered = append(ordered, quoteIdent(intent.PeriodAlias))
		for _, column := range q.GroupBy {
			ordered = append(ordered, quoteIdent(column))
		}
	case q.OrderBy != "":
		direction := "ASC"
		if q.Descending {
			direction = "DESC"
		}
		ordered = append(ordered, quoteIdent(q.OrderBy)+" "+direction)
		for _, column := range q.GroupBy {
			ordered = append(ordered, quoteIdent(column))
		}
	}

	clauses := []string{
		"SELECT " + strings.Join(selected, ", "),
		"FROM " + quoteIdent(table),
	}
	if len(where) > 0 {
		clauses = append(clauses, "WHERE "+strings.Join(where, " AND "))
	}
	if len(grouped) > 0 && q.Aggregation != intent.AggNone {
		clauses = append(clauses, "GROUP BY "+strings.Join(grouped, ", "))
	}
	if len(ordered) > 0 {
		clauses = append(clauses, "ORDER BY "+strings.Join(ordered, ", "))
	}
	if q.Limit > 0 {
		clauses = append(clauses, fmt.Sprintf("LIMIT %d", q.Limit))
	}
	return strings.Join(clauses, "\n"), nil
}

func metricExpr(q intent.QueryIntent, condition string) string {
	filter := ""
	if condition != "" {
		filter = " FILTER (WHERE " + condition + ")"
	}
	switch q.Aggregation {
	case intent.AggCount:
		if q.CountDistinct && q.Measure != "" {
			return "COUNT(DISTINCT " + quoteIdent(q.Measure) + ")" + filter
		}
		return "COUNT(*)" + filter
	case intent.AggAvg:
		return "ROUND(AVG(" + quoteIdent(q.Measure) + ")" + filter + ", 2)"
	case intent.AggSum:
		return "SUM(" + quoteIdent(q.Measure) + ")" + filter
	case intent.AggMin:
		return "MIN(" + quoteIdent(q.Measure) + ")" + filter
	case intent.AggMax:
		return "MAX(" + quoteIdent(q.Measure) + ")" + filter
	case intent.AggNone:
		return ""
	default:
		return ""
	}
}

func renderFilter(filter intent.Filter) (string, error) {
	switch filter.Operator {
	case intent.OpEquals:
		if len(filter.Values) == 0 {
			return "", fmt.Errorf("filter on %q has no values", filter.Column)
		}
		values := make([]string, 0, len(filter.Values))
		for _, value := range filter.Values {
			values = append(values, quoteString(strings.ToLower(value)))
		}
		return fmt.Sprintf("lower(CAST(%s AS VARCHAR)) IN (%s)", quoteIdent(filter.Column), strings.Join(values, ", ")), nil
	case intent.OpWithinDays:
		if filter.Days <= 0 {
			return "", fmt.Errorf("filter on %q needs a positive day window", filter.Column)
		}
		return fmt.Sprintf("CAST(%s AS DATE) >= current_date - INTERVAL %d DAY", quoteIdent(filter.Column), filter.Days), nil
	default:
		return "", fmt.Errorf("unsupported filter operator %s", filter.Operator)
	}
}

func checkColumns(req Request) error {
	q := req.Intent
	if len(req.Relation.Columns) == 0 {
		return nil
	}
	referenced := append([]string(nil), q.Columns...)
	referenced = append(referenced, q.GroupBy...)
	if q.Measure != "" {
		referenced = append(referenced, q.Measure)
	}
	if q.TimeColumn != "" {
		referenced = append(referenced, q.TimeColumn)
	}
	for _, filter := range q.Filters {
		referenced = append(referenced, filter.Column)
	}
	for _, column := range referenced {
		if !req.Relation.HasColumn(column) {
			return fmt.Errorf("column %q is not in %s", column, req.Relation.Table)
		}
	}
	return nil
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
