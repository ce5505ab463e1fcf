package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/observability"
	"github.com/pardeepwalia007/Assignment-RAG/internal/query/duckdb"
	"github.com/pardeepwalia007/Assignment-RAG/internal/retrieval"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
	"github.com/pardeepwalia007/Assignment-RAG/internal/storage"
)

const (
	CustomersTable = "customers"
	TicketsTable   = "tickets"

	defaultJoinKey          = "customer_id"
	defaultViewName         = "customer_tickets"
	defaultSampleValueLimit = 25
	defaultChunkSize        = 800
	defaultChunkOverlap     = 100
)

type BuilderConfig struct {
	WorkDir          string
	JoinKey          string
	ViewName         string
	SampleValueLimit int
	Limits           ingest.Limits
	ChunkSize        int
	ChunkOverlap     int
	// Archive receives the raw uploads when set.
	Archive storage.Archiver
	Logger  *slog.Logger
}

// DuckDBBuilder turns an upload into a session backed by a private in-memory
// DuckDB database.
type DuckDBBuilder struct {
	cfg    BuilderConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewDuckDBBuilder(cfg BuilderConfig) (*DuckDBBuilder, error) {
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work dir is required")
	}
	if cfg.JoinKey == "" {
		cfg.JoinKey = defaultJoinKey
	}
	if cfg.ViewName == "" {
		cfg.ViewName = defaultViewName
	}
	if cfg.SampleValueLimit <= 0 {
		cfg.SampleValueLimit = defaultSampleValueLimit
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = min(defaultChunkOverlap, cfg.ChunkSize/8)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DuckDBBuilder{cfg: cfg, logger: logger, now: time.Now}, nil
}

func (b *DuckDBBuilder) Build(ctx context.Context, id string, upload ingest.Upload) (_ *Session, err error) {
	if err := ingest.ValidateUpload(upload, b.cfg.Limits); err != nil {
		return nil, err
	}
	customersFormat, err := ingest.DetectTabularFormat(upload.Customers)
	if err != nil {
		return nil, fmt.Errorf("customers file %q: %w", upload.Customers.Name, err)
	}
	ticketsFormat, err := ingest.DetectTabularFormat(upload.Tickets)
	if err != nil {
		return nil, fmt.Errorf("tickets file %q: %w", upload.Tickets.Name, err)
	}

	extraction, err := ingest.ExtractDocuments(ctx, upload.Documents, b.cfg.Limits)
	for _, rejected := range extraction.Rejected {
		observability.IncIngestionRejection(rejected.Reason())
		b.logger.Warn("document rejected", "session_id", id, "document", rejected.Name, "reason", rejected.Reason(), "error", rejected.Err)
	}
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        id,
		Tables:    make(map[string]schema.Relation, 2),
		JoinKey:   b.cfg.JoinKey,
		Warnings:  extraction.Warnings(),
		CreatedAt: b.now().UTC(),
		workDir:   filepath.Join(b.cfg.WorkDir, id),
	}
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session work dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if b.cfg.Archive != nil {
		keys, archiveErr := storage.ArchiveUploads(ctx, b.cfg.Archive, id, archiveFiles(upload))
		s.Archived = keys
		if archiveErr != nil {
			s.Warnings = append(s.Warnings, "uploads were not fully archived: "+archiveErr.Error())
			b.logger.Warn("archive uploads failed", "session_id", id, "error", archiveErr)
		}
	}

	s.Engine, err = duckdb.Open(ctx, s.workDir)
	if err != nil {
		return nil, err
	}
	if _, err = s.Engine.ImportTable(ctx, CustomersTable, bytes.NewReader(upload.Customers.Data), customersFormat); err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	if _, err = s.Engine.ImportTable(ctx, TicketsTable, bytes.NewReader(upload.Tickets.Data), ticketsFormat); err != nil {
		return nil, fmt.Errorf("load tickets: %w", err)
	}

	s.Table = b.cfg.ViewName
	if joinErr := s.Engine.CreateJoinView(ctx, b.cfg.ViewName, CustomersTable, TicketsTable, b.cfg.JoinKey); joinErr != nil {
		if !errors.Is(joinErr, duckdb.ErrMissingJoinKey) {
			return nil, joinErr
		}
		s.Table = TicketsTable
		s.Warnings = append(s.Warnings, fmt.Sprintf("%v; questions run against the %s table only", joinErr, TicketsTable))
		b.logger.Warn("join view skipped", "session_id", id, "join_key", b.cfg.JoinKey, "error", joinErr)
	}

	for _, table := range []string{CustomersTable, TicketsTable} {
		relation, profileErr := schema.Profile(ctx, s.Engine, table)
		if profileErr != nil {
			return nil, profileErr
		}
		s.Tables[table] = relation
	}
	s.Relation, err = schema.Profile(ctx, s.Engine, s.Table)
	if err != nil {
		return nil, err
	}
	s.Relation.Samples, err = b.sampleValues(ctx, s.Engine, s.Relation)
	if err != nil {
		return nil, err
	}

	if len(extraction.Documents) > 0 {
		for _, doc := range extraction.Documents {
			s.Documents = append(s.Documents, doc.Name)
		}
		s.Retriever = retrieval.NewIndex(extraction.Documents, b.cfg.ChunkSize, b.cfg.ChunkOverlap)
	}
	return s, nil
}

// sampleValues keeps the distinct values of textual columns whose full value
// set fits in the sample limit.
func (b *DuckDBBuilder) sampleValues(ctx context.Context, engine *duckdb.Engine, relation schema.Relation) (map[string][]string, error) {
	samples := make(map[string][]string)
	for _, column := range relation.Textual {
		values, complete, err := engine.DistinctValues(ctx, relation.Table, column, b.cfg.SampleValueLimit)
		if err != nil {
			return nil, err
		}
		if complete && len(values) > 0 {
			samples[column] = values
		}
	}
	return samples, nil
}

func archiveFiles(upload ingest.Upload) []storage.UploadFile {
	files := []storage.UploadFile{
		{Role: CustomersTable, Name: upload.Customers.Name, Data: upload.Customers.Data},
		{Role: TicketsTable, Name: upload.Tickets.Name, Data: upload.Tickets.Data},
	}
	for _, doc := range upload.Documents {
		files = append(files, storage.UploadFile{Role: "documents", Name: doc.Name, Data: doc.Data})
	}
	return files
}
