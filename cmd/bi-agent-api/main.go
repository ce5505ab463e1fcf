package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pardeepwalia007/Assignment-RAG/internal/api"
	"github.com/pardeepwalia007/Assignment-RAG/internal/audit"
	auditpostgres "github.com/pardeepwalia007/Assignment-RAG/internal/audit/postgres"
	"github.com/pardeepwalia007/Assignment-RAG/internal/chat"
	"github.com/pardeepwalia007/Assignment-RAG/internal/config"
	"github.com/pardeepwalia007/Assignment-RAG/internal/generator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/nl2sql"
	"github.com/pardeepwalia007/Assignment-RAG/internal/observability"
	"github.com/pardeepwalia007/Assignment-RAG/internal/orchestrator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
	"github.com/pardeepwalia007/Assignment-RAG/internal/session"
	"github.com/pardeepwalia007/Assignment-RAG/internal/storage"
	s3store "github.com/pardeepwalia007/Assignment-RAG/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("bi-agent-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	questionRouter, err := newRouter(cfg)
	if err != nil {
		logger.Error("failed to load router lexicon", slog.Any("error", err))
		os.Exit(1)
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
		translator, err = nl2sql.NewOpenAITranslator(chatCfg)
		if err != nil {
			logger.Error("failed to initialize query translator", slog.Any("error", err))
			os.Exit(1)
		}
	}
	var answerGenerator generator.Generator = generator.NewTemplateGenerator()
	if cfg.AI.GeneratorEnabled {
		answerGenerator, err = generator.NewOpenAIGenerator(chatCfg)
		if err != nil {
			logger.Error("failed to initialize answer generator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var archive storage.Archiver
	var archivePing api.ReadinessCheck
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
			os.Exit(1)
		}
		archive = s3Archive
		archivePing = s3Archive.Ping
	}

	readiness := []api.ReadinessCheck{api.CheckAuditDSN(cfg), api.CheckArchiveConfig(cfg), archivePing}
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
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()
		repo := auditpostgres.NewRepository(auditDB)
		recorder = repo
		readiness = append(readiness, repo.HealthCheck)
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
		os.Exit(1)
	}
	registry, err := session.NewRegistry(builder, session.RegistryOptions{
		TTL:             cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("failed to initialize session registry", slog.Any("error", err))
		os.Exit(1)
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
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
		Sessions:          registry,
		Answerer:          orch,
		Router:            questionRouter,
		History:           recorder,
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.Bool("ai_generator", cfg.AI.GeneratorEnabled),
			slog.Bool("ai_translate", cfg.AI.TranslateEnabled),
			slog.Bool("archive", cfg.Archive.Enabled),
			slog.Bool("audit", cfg.Audit.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server", slog.Int("sessions", registry.Len()))
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
	}
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
