package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/observability"
)

type RegistryOptions struct {
	// TTL is the idle time after which a session is evicted. Zero keeps
	// sessions for the life of the process.
	TTL             time.Duration
	CleanupInterval time.Duration
	Logger          *slog.Logger
}

// Registry maps session ids to built sessions. Create is the only mutator.
type Registry struct {
	builder Builder
	items   *cache.Cache
	ttl     time.Duration
	logger  *slog.Logger
	newID   func() string
}

func NewRegistry(builder Builder, opts RegistryOptions) (*Registry, error) {
	if builder == nil {
		return nil, fmt.Errorf("session builder is required")
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("session ttl must be >= 0")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if opts.TTL > 0 {
		expiration = opts.TTL
		cleanup = opts.CleanupInterval
		if cleanup <= 0 {
			cleanup = opts.TTL
		}
	}

	r := &Registry{
		builder: builder,
		items:   cache.New(expiration, cleanup),
		ttl:     opts.TTL,
		logger:  logger,
		newID:   uuid.NewString,
	}
	r.items.OnEvicted(func(id string, value any) {
		s, ok := value.(*Session)
		if !ok {
			return
		}
		if err := s.Close(); err != nil {
			r.logger.Warn("close evicted session", "session_id", id, "error", err)
		}
		r.logger.Info("session evicted", "session_id", id)
		observability.SetActiveSessions(r.items.ItemCount())
	})
	return r, nil
}

// Create ingests the upload under a fresh id and registers the result. Nothing
// is registered when ingestion fails.
func (r *Registry) Create(ctx context.Context, upload ingest.Upload) (Created, error) {
	id := r.newID()
	s, err := r.builder.Build(ctx, id, upload)
	if err != nil {
		return Created{}, err
	}
	if err := r.items.Add(id, s, cache.DefaultExpiration); err != nil {
		_ = s.Close()
		return Created{}, fmt.Errorf("register session %s: %w", id, err)
	}
	observability.IncSessionsCreated()
	observability.SetActiveSessions(r.items.ItemCount())
	r.logger.Info("session created",
		"session_id", id,
		"table", s.Table,
		"documents", len(s.Documents),
		"warnings", len(s.Warnings),
	)

	warnings := s.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return Created{ID: id, Warnings: warnings, HasDocuments: s.HasDocuments()}, nil
}

// Get returns the session for id, or nil and false when it is unknown or has
// expired. A hit restarts the idle timer.
func (r *Registry) Get(id string) (*Session, bool) {
	value, ok := r.items.Get(id)
	if !ok {
		return nil, false
	}
	s, ok := value.(*Session)
	if !ok {
		return nil, false
	}
	if r.ttl > 0 && !r.touch(id, s) {
		return nil, false
	}
	return s, true
}

// touch restarts the idle timer of a live entry. It reports false when the
// entry was evicted or expired after the lookup, and never re-adds it.
func (r *Registry) touch(id string, s *Session) bool {
	return r.items.Replace(id, s, cache.DefaultExpiration) == nil
}

func (r *Registry) Len() int {
	return r.items.ItemCount()
}

// Close evicts every session, releasing their engines and work directories.
func (r *Registry) Close() {
	r.items.DeleteExpired()
	for id := range r.items.Items() {
		r.items.Delete(id)
	}
}
