package session

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/query/duckdb"
	"github.com/pardeepwalia007/Assignment-RAG/internal/retrieval"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
)

// Session is the runtime built from one upload. It is read-only once
// registered.
type Session struct {
	ID        string
	Engine    *duckdb.Engine
	Table     string
	Relation  schema.Relation
	Tables    map[string]schema.Relation
	JoinKey   string
	Retriever retrieval.Retriever
	Documents []string
	Archived  []string
	Warnings  []string
	CreatedAt time.Time

	workDir string
}

func (s *Session) HasDocuments() bool {
	return s != nil && s.Retriever != nil
}

// Close releases the query engine and removes the work directory.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Engine != nil {
		errs = append(errs, s.Engine.Close())
	}
	if s.workDir != "" {
		errs = append(errs, os.RemoveAll(s.workDir))
	}
	return errors.Join(errs...)
}

// Created is what the caller learns about a new session.
type Created struct {
	ID           string   `json:"session_id"`
	Warnings     []string `json:"warnings"`
	HasDocuments bool     `json:"has_documents"`
}

type Builder interface {
	Build(ctx context.Context, id string, upload ingest.Upload) (*Session, error)
}
