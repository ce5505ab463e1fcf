package nl2sql

import (
	"context"
	"errors"

	"github.com/pardeepwalia007/Assignment-RAG/internal/intent"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
)

// ErrNotExecutable is returned for metadata intents and intents carrying a
// validation error.
var ErrNotExecutable = errors.New("intent is not executable")

type Request struct {
	Question string             `json:"question"`
	Intent   intent.QueryIntent `json:"intent"`
	Relation schema.Relation    `json:"relation"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
