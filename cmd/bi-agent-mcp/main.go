package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/pardeepwalia007/Assignment-RAG/internal/audit"
	auditpostgres "github.com/pardeepwalia007/Assignment-RAG/internal/audit/postgres"
	"github.com/pardeepwalia007/Assignment-RAG/internal/chat"
	"github.com/pardeepwalia007/Assignment-RAG/internal/config"
	"github.com/pardeepwalia007/Assignment-RAG/internal/generator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/mcp"
	"github.com/pardeepwalia007/Assignment-RAG/internal/nl2sql"
	"github.com/pardeepwalia007/Assignment-RAG/internal/observability"
	"github.com/pardeepwalia007/Assignment-RAG/internal/orchestrator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
	"github.com/pardeepwalia007/Assignment-RAG/internal/session"
	"github.com/pardeepwalia007/Assignment-RAG/internal/storage"
	s3store "github.com/pardeepwalia007/Assignment-RAG/internal/storage/s3"
)

func main() {
	os.Exit(run())
}

// run serves MCP over stdin and stdout. Logs go to stderr so they never
// interleave with protocol frames.
func run() int {
	cfg, err := config.LoadFromEnv("bi-agent-mcp")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	questionRouter, err := newRouter(cfg)
	if err != nil {
		logger.Error("failed to load router lexicon", slog.Any("error", err))
		return 1
	}

	chatCfg := chat.Config{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	}
	var translator nl2sql.Translator = nl2sql.NewIntentTranslator()
	if cfg.AI.TranslateEnabled {
		if translator, err = nl2sql.NewOpenAITranslator(chatCfg); err != nil {
			logger.Error("failed to initialize query translator", slog.Any("error", err))
			return 1
		}
	}
	var answerGenerator generator.Generator = generator.NewTemplateGenerator()
	if cfg.AI.GeneratorEnabled {
		if answerGenerator, err = generator.NewOpenAIGenerator(chatCfg); err != nil {
			logger.Error("failed to initialize answer generator", slog.Any("error", err))
			return 1
		}
	}

	var archive storage.Archiver
	if cfg.Archive.Enabled {
		s3Archive, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.Archive.Endpoint,
			Region:           cfg.Archive.Region,
			Bucket:           cfg.Archive.Bucket,
			AccessKeyID:      cfg.Archive.AccessKeyID,
			SecretAccessKey:  cfg.Archive.SecretAccessKey,
			UseSSL:           cfg.Archive.UseSSL,
			Prefix:           cfg.Archive.Prefix,
			AutoCreateBucket: cfg.Archive.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize upload archive", slog.Any("error", err))
			return 1
		}
		archive = s3Archive
	}

	var recorder audit.Recorder
	if cfg.Audit.Enabled {
		auditDB, err := auditpostgres.Open(context.Background(), auditpostgres.DBConfig{
			DSN:             cfg.Audit.DSN,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxIdleTime: cfg.Audit.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			return 1
		}
		defer func() { _ = auditDB.Close() }()
		recorder = auditpostgres.NewRepository(auditDB)
	}

	builder, err := session.NewDuckDBBuilder(session.BuilderConfig{
		WorkDir:          cfg.Ingestion.WorkDir,
		JoinKey:          cfg.Ingestion.JoinKey,
		ViewName:         cfg.Ingestion.ViewName,
		SampleValueLimit: cfg.Ingestion.SampleValueLimit,
		Limits: ingest.Limits{
			MaxDocuments:     cfg.Ingestion.MaxDocuments,
			MinDocumentChars: cfg.Ingestion.MinDocumentChars,
		},
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		Archive:      archive,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to initialize session builder", slog.Any("error", err))
		return 1
	}
	registry, err := session.NewRegistry(builder, session.RegistryOptions{
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to initialize session registry", slog.Any("error", err))
		return 1
	}
	defer registry.Close()

	orch, err := orchestrator.New(orchestrator.Config{
		Router:      questionRouter,
		Translator:  translator,
		Generator:   answerGenerator,
		Recorder:    recorder,
		TopK:        cfg.Retrieval.TopK,
		PreviewRows: cfg.Query.PreviewRows,
		RowLimit:    cfg.Query.RowLimit,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to initialize orchestrator", slog.Any("error", err))
		return 1
	}

	mcpServer, err := mcp.NewServer(cfg.Service.Name, mcp.Dependencies{
		Sessions:       registry,
		Answerer:       orch,
		Logger:         logger,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	})
	if err != nil {
		logger.Error("failed to initialize mcp server", slog.Any("error", err))
		return 1
	}

	logger.Info("serving mcp over stdio",
		slog.Bool("ai_generator", cfg.AI.GeneratorEnabled),
		slog.Bool("ai_translate", cfg.AI.TranslateEnabled),
		slog.Bool("archive", cfg.Archive.Enabled),
		slog.Bool("audit", cfg.Audit.Enabled),
	)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error("mcp server failed", slog.Any("error", err))
		return 1
	}
	logger.Info("mcp server stopped", slog.Int("sessions", registry.Len()))
	return 0
}

func newRouter(cfg config.Config) (*router.Router, error) {
	if cfg.Router.LexiconPath == "" {
		return router.NewDefault()
	}
	lexicon, err := router.LoadLexicon(os.DirFS(filepath.Dir(cfg.Router.LexiconPath)), filepath.Base(cfg.Router.LexiconPath))
	if err != nil {
		return nil, err
	}
	return router.New(lexicon)
}
