package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrLookup is returned when the relation's columns could not be described.
var ErrLookup = errors.New("schema lookup failed")

type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type Describer interface {
	Describe(ctx context.Context, table string) ([]Column, error)
}

// Relation is the profile of one queryable table or view. Numeric, Temporal
// and Textual partition Columns.
type Relation struct {
	Table      string              `json:"table"`
	PrimaryKey string              `json:"primary_key,omitempty"`
	Columns    []Column            `json:"columns"`
	Numeric    []string            `json:"numeric_columns"`
	Temporal   []string            `json:"temporal_columns"`
	Textual    []string            `json:"textual_columns"`
	Samples    map[string][]string `json:"samples,omitempty"`
}

type ColumnClass int

const (
	ClassTextual ColumnClass = iota
	ClassNumeric
	ClassTemporal
)

func (c ColumnClass) String() string {
	switch c {
	case ClassNumeric:
		return "numeric"
	case ClassTemporal:
		return "temporal"
	case ClassTextual:
		return "textual"
	default:
		return "unknown"
	}
}

var (
	numericMarkers  = []string{"INT", "DOUBLE", "FLOAT", "DECIMAL", "BIGINT", "HUGEINT", "REAL", "NUMERIC"}
	temporalMarkers = []string{"DATE", "TIMESTAMP", "TIME"}

	primaryKeyPreference = []string{"customer_id", "ticket_id", "sale_id", "transaction_id", "order_id", "id"}
)

func Profile(ctx context.Context, describer Describer, table string) (Relation, error) {
	if describer == nil {
		return Relation{}, fmt.Errorf("%w: describer is required", ErrLookup)
	}
	columns, err := describer.Describe(ctx, table)
	if err != nil {
		return Relation{}, fmt.Errorf("%w: describe %q: %w", ErrLookup, table, err)
	}
	return FromColumns(table, columns), nil
}

// FromColumns classifies already described columns.
func FromColumns(table string, columns []Column) Relation {
	relation := Relation{
		Table:    table,
		Columns:  append([]Column(nil), columns...),
		Numeric:  []string{},
		Temporal: []string{},
		Textual:  []string{},
	}
	for _, column := range columns {
		switch Classify(column.Type) {
		case ClassNumeric:
			relation.Numeric = append(relation.Numeric, column.Name)
		case ClassTemporal:
			relation.Temporal = append(relation.Temporal, column.Name)
		case ClassTextual:
			relation.Textual = append(relation.Textual, column.Name)
		}
	}
	relation.PrimaryKey = choosePrimaryKey(columns)
	return relation
}

// Classify maps a declared column type to its class. Unknown types are textual.
func Classify(declaredType string) ColumnClass {
	upper := strings.ToUpper(declaredType)
	// INTERVAL contains INT but is not a number.
	if !strings.HasPrefix(upper, "INTERVAL") {
		for _, marker := range numericMarkers {
			if strings.Contains(upper, marker) {
				return ClassNumeric
			}
		}
	}
	for _, marker := range temporalMarkers {
		if strings.Contains(upper, marker) {
			return ClassTemporal
		}
	}
	return ClassTextual
}

func choosePrimaryKey(columns []Column) string {
	for _, preferred := range primaryKeyPreference {
		for _, column := range columns {
			if strings.EqualFold(column.Name, preferred) {
				return column.Name
			}
		}
	}
	for _, column := range columns {
		if strings.HasSuffix(strings.ToLower(column.Name), "_id") {
			return column.Name
		}
	}
	return ""
}

func (r Relation) ColumnNames() []string {
	names := make([]string, 0, len(r.Columns))
	for _, column := range r.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Lookup finds a column by case-insensitive name.
func (r Relation) Lookup(name string) (Column, bool) {
	for _, column := range r.Columns {
		if strings.EqualFold(column.Name, name) {
			return column, true
		}
	}
	return Column{}, false
}

func (r Relation) HasColumn(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

func (r Relation) ClassOf(name string) ColumnClass {
	column, ok := r.Lookup(name)
	if !ok {
		return ClassTextual
	}
	return Classify(column.Type)
}

// Summary renders the relation as a short plain-text description.
func (r Relation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %s has %d columns", r.Table, len(r.Columns))
	if r.PrimaryKey != "" {
		fmt.Fprintf(&b, " (key: %s)", r.PrimaryKey)
	}
	b.WriteString(":\n")
	for _, column := range r.Columns {
		fmt.Fprintf(&b, "- %s %s (%s)\n", column.Name, column.Type, Classify(column.Type))
	}
	return strings.TrimRight(b.String(), "\n")
}
