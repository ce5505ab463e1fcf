package intent

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindExecutable Kind = iota
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindExecutable:
		return "executable"
	case KindMetadata:
		return "metadata"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type Aggregation int

const (
	AggNone Aggregation = iota
	AggCount
	AggSum
	AggAvg
	AggMin
	AggMax
)

func (a Aggregation) String() string {
	switch a {
	case AggNone:
		return "none"
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	default:
		return fmt.Sprintf("aggregation(%d)", int(a))
	}
}

func (a Aggregation) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

type TimeGrain int

const (
	GrainNone TimeGrain = iota
	GrainDay
	GrainWeek
	GrainMonth
	GrainQuarter
	GrainYear
)

func (g TimeGrain) String() string {
	switch g {
	case GrainNone:
		return "none"
	case GrainDay:
		return "day"
	case GrainWeek:
		return "week"
	case GrainMonth:
		return "month"
	case GrainQuarter:
		return "quarter"
	case GrainYear:
		return "year"
	default:
		return fmt.Sprintf("grain(%d)", int(g))
	}
}

func (g TimeGrain) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

type Operator int

const (
	// OpEquals compares case-insensitively against one or more values.
	OpEquals Operator = iota
	// OpWithinDays keeps rows whose column falls in the last Days days.
	OpWithinDays
)

func (o Operator) String() string {
	switch o {
	case OpEquals:
		return "equals"
	case OpWithinDays:
		return "within_days"
	default:
		return fmt.Sprintf("operator(%d)", int(o))
	}
}

func (o Operator) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

type Filter struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Values   []string `json:"values,omitempty"`
	Days     int      `json:"days,omitempty"`
}

type ErrorCode string

const (
	CodeUnknownColumn   ErrorCode = "UNKNOWN_COLUMN"
	CodeAmbiguousColumn ErrorCode = "AMBIGUOUS_COLUMN"
	CodeMeasureRequired ErrorCode = "MEASURE_REQUIRED"
	CodeEmptyQuestion   ErrorCode = "EMPTY_QUESTION"
)

// IntentError is a validation failure carried inside a QueryIntent.
type IntentError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Reference string    `json:"reference,omitempty"`
}

func (e *IntentError) Error() string {
	if e.Reference == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%q)", e.Code, e.Message, e.Reference)
}

// QueryIntent is the structured form of a question's data request.
type QueryIntent struct {
	Kind          Kind         `json:"kind"`
	Question      string       `json:"question"`
	Table         string       `json:"table"`
	Aggregation   Aggregation  `json:"aggregation"`
	Measure       string       `json:"measure,omitempty"`
	CountDistinct bool         `json:"count_distinct,omitempty"`
	Columns       []string     `json:"columns,omitempty"`
	Filters       []Filter     `json:"filters,omitempty"`
	GroupBy       []string     `json:"group_by,omitempty"`
	TimeGrain     TimeGrain    `json:"time_grain"`
	TimeColumn    string       `json:"time_column,omitempty"`
	OrderBy       string       `json:"order_by,omitempty"`
	Descending    bool         `json:"descending,omitempty"`
	Limit         int          `json:"limit,omitempty"`
	Percentages   bool         `json:"percentages,omitempty"`
	BusinessTerms []string     `json:"business_terms,omitempty"`
	Err           *IntentError `json:"error,omitempty"`
}

// Executable reports whether the intent should be translated and run.
func (q QueryIntent) Executable() bool {
	return q.Kind == KindExecutable && q.Err == nil
}

// MetricAlias names the aggregate output column.
func (q QueryIntent) MetricAlias() string {
	switch q.Aggregation {
	case AggNone:
		return ""
	case AggCount:
		return "count"
	case AggSum, AggAvg, AggMin, AggMax:
		return q.Aggregation.String() + "_" + strings.ToLower(q.Measure)
	default:
		return ""
	}
}

// PeriodAlias names the truncated time bucket column.
const PeriodAlias = "period"
