package nl2sql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pardeepwalia007/Assignment-RAG/internal/chat"
	"github.com/pardeepwalia007/Assignment-RAG/internal/query"
)

// OpenAITranslator asks an OpenAI-compatible model for SQL, seeded with the
// refined intent and the relation's schema.
type OpenAITranslator struct {
	client *chat.Client
}

func NewOpenAITranslator(cfg chat.Config) (*OpenAITranslator, error) {
	client, err := chat.New(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAITranslator{client: client}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if !req.Intent.Executable() {
		return Result{}, ErrNotExecutable
	}
	messages, err := buildPrompt(req)
	if err != nil {
		return Result{}, err
	}
	content, err := t.client.Complete(ctx, messages)
	if err != nil {
		return Result{}, err
	}

	sql := stripMarkdownSQL(content)
	if strings.TrimSpace(sql) == "" {
		return Result{}, fmt.Errorf("model returned empty SQL")
	}
	if !query.IsReadOnly(sql) {
		return Result{}, fmt.Errorf("model returned a non-read-only statement: %w", query.ErrNotReadOnly)
	}
	return Result{
		SQL:      sql,
		Provider: "openai-compatible",
		Model:    t.client.Model(),
	}, nil
}

func buildPrompt(req Request) ([]chat.Message, error) {
	intentJSON, err := json.Marshal(req.Intent)
	if err != nil {
		return nil, fmt.Errorf("marshal intent context: %w", err)
	}
	samplesJSON, err := json.Marshal(req.Relation.Samples)
	if err != nil {
		return nil, fmt.Errorf("marshal sample context: %w", err)
	}
	systemPrompt := "You convert business questions into a single read-only DuckDB SQL query. " +
		"DuckDB uses PostgreSQL-like SQL syntax. " +
		"Return ONLY SQL. No markdown, no explanation."
	userPrompt := fmt.Sprintf(
		"%s\nSample values (JSON):\n%s\n\nParsed intent (JSON):\n%s\n\nQuestion:\n%s\n\nRules:\n- Query only %s.\n- Use only listed columns.\n- Honor the filters, grouping and limit of the parsed intent.\n- Output a single SELECT statement only.",
		req.Relation.Summary(),
		string(samplesJSON),
		string(intentJSON),
		strings.TrimSpace(req.Question),
		req.Relation.Table,
	)
	return []chat.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}, nil
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
