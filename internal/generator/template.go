package generator

import (
	"context"
	"fmt"
	"strings"
)

const maxTemplatePassages = 3

// TemplateGenerator answers without a model by laying the evidence out as
// text. It is used when no model endpoint is configured.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (TemplateGenerator) Generate(ctx context.Context, evidence Evidence) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sections []string
	switch {
	case len(evidence.Rows) == 1 && len(evidence.Columns) == 1:
		sections = append(sections, fmt.Sprintf("The %s is %s.", evidence.Columns[0], FormatValue(evidence.Rows[0][0])))
	case len(evidence.Rows) > 0:
		sections = append(sections, table(evidence))
	case evidence.HasStructured() && evidence.Error == "":
		sections = append(sections, "The query returned no matching rows.")
	}
	if evidence.Schema != "" {
		sections = append(sections, evidence.Schema)
	}
	if len(evidence.Passages) > 0 {
		var b strings.Builder
		b.WriteString("From the documents:")
		for i, passage := range evidence.Passages {
			if i == maxTemplatePassages {
				break
			}
			fmt.Fprintf(&b, "\n- %s (%s)", passage.Text, passage.Source)
		}
		sections = append(sections, b.String())
	}
	if evidence.Error != "" {
		sections = append(sections, "The data query could not be completed: "+evidence.Error)
	}
	if len(sections) == 0 {
		return "I could not find evidence to answer this question.", nil
	}
	return fmt.Sprintf("[%s]\n%s", evidence.SourceLabel, strings.Join(sections, "\n\n")), nil
}

func table(evidence Evidence) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(evidence.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(evidence.Columns)) + "\n")
	for _, row := range evidence.Rows {
		values := make([]string, 0, len(row))
		for _, value := range row {
			values = append(values, FormatValue(value))
		}
		b.WriteString("| " + strings.Join(values, " | ") + " |\n")
	}
	if evidence.TotalRows > len(evidence.Rows) {
		fmt.Fprintf(&b, "Showing %d of %d rows.", len(evidence.Rows), evidence.TotalRows)
	}
	return strings.TrimRight(b.String(), "\n")
}
