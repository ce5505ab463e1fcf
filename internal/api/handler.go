package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pardeepwalia007/Assignment-RAG/internal/audit"
	"github.com/pardeepwalia007/Assignment-RAG/internal/config"
	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/observability"
	"github.com/pardeepwalia007/Assignment-RAG/internal/orchestrator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
	"github.com/pardeepwalia007/Assignment-RAG/internal/session"
)

type ReadinessCheck func(ctx context.Context) error

type SessionStore interface {
	Create(ctx context.Context, upload ingest.Upload) (session.Created, error)
	Get(id string) (*session.Session, bool)
}

type Answerer interface {
	Answer(ctx context.Context, src orchestrator.Source, question string) (*orchestrator.Request, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Sessions          SessionStore
	Answerer          Answerer
	Router            *router.Router
	// History serves the ask log. Nil disables the history endpoint.
	History audit.Recorder
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		handleCreateSession(cfg, deps, w, r)
	})
	mux.HandleFunc("GET /v1/sessions/{session}", func(w http.ResponseWriter, r *http.Request) {
		handleGetSession(deps, w, r)
	})
	mux.HandleFunc("POST /v1/sessions/{session}/ask", func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	})
	mux.HandleFunc("GET /v1/sessions/{session}/history", func(w http.ResponseWriter, r *http.Request) {
		handleHistory(deps, w, r)
	})
	mux.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleOneShotQuery(cfg, deps, w, r)
	})
	mux.HandleFunc("POST /v1/route", func(w http.ResponseWriter, r *http.Request) {
		handleRoute(deps, w, r)
	})

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckAuditDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Audit.Enabled && cfg.Audit.DSN == "" {
			return errors.New("audit dsn is not configured")
		}
		return nil
	}
}

func CheckArchiveConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.Archive.Enabled {
			return nil
		}
		if cfg.Archive.Endpoint == "" {
			return errors.New("archive endpoint is not configured")
		}
		if cfg.Archive.Bucket == "" {
			return errors.New("archive bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
