package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/pardeepwalia007/Assignment-RAG/internal/chat"
	"github.com/pardeepwalia007/Assignment-RAG/internal/retrieval"
)

const systemPrompt = "You are a business intelligence assistant. Answer the question using only the evidence provided. " +
	"Quote numbers exactly as they appear in the SQL result. " +
	"When policy text and data are both present, apply the policy to the data and say which records qualify. " +
	"If the evidence is insufficient, say so plainly."

type OpenAIGenerator struct {
	client *chat.Client
}

func NewOpenAIGenerator(cfg chat.Config) (*OpenAIGenerator, error) {
	client, err := chat.New(cfg)
	if err != nil {
		return nil, err
	}
	return &OpenAIGenerator{client: client}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, evidence Evidence) (string, error) {
	answer, err := g.client.Complete(ctx, []chat.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(evidence)},
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("generate answer: model returned empty text")
	}
	return answer, nil
}

func buildUserPrompt(evidence Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", strings.TrimSpace(evidence.Question))
	fmt.Fprintf(&b, "Source type: %s\n", evidence.SourceLabel)
	if len(evidence.BusinessTerms) > 0 {
		fmt.Fprintf(&b, "Business terms: %s\n", strings.Join(evidence.BusinessTerms, ", "))
	}
	if evidence.Schema != "" {
		fmt.Fprintf(&b, "\n[SCHEMA]\n%s\n", evidence.Schema)
	}
	if len(evidence.Passages) > 0 {
		fmt.Fprintf(&b, "\n[BUSINESS_RULES]\n%s\n", retrieval.JoinPassages(evidence.Passages))
	}
	if evidence.SQL != "" {
		fmt.Fprintf(&b, "\n[SQL]\n%s\n", evidence.SQL)
	}
	if block := evidence.StructuredBlock(); block != "" {
		b.WriteString("\n" + block)
	} else if evidence.HasStructured() {
		b.WriteString("\n[SQL_RESULT]\nThe query returned no rows.\n")
	}
	if evidence.Error != "" {
		fmt.Fprintf(&b, "\n[ERROR]\n%s\n", evidence.Error)
	}
	return b.String()
}
