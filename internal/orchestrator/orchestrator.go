// Package orchestrator answers one question by walking a fixed state machine:
// decide_mode, then document retrieval and/or structured execution, then a
// single generator call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pardeepwalia007/Assignment-RAG/internal/audit"
	"github.com/pardeepwalia007/Assignment-RAG/internal/generator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/intent"
	"github.com/pardeepwalia007/Assignment-RAG/internal/nl2sql"
	"github.com/pardeepwalia007/Assignment-RAG/internal/observability"
	"github.com/pardeepwalia007/Assignment-RAG/internal/query"
	"github.com/pardeepwalia007/Assignment-RAG/internal/retrieval"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
	"github.com/pardeepwalia007/Assignment-RAG/internal/session"
)

// ErrGeneration wraps generator failures. The request has no answer.
var ErrGeneration = errors.New("answer generation failed")

const (
	defaultTopK        = 4
	defaultPreviewRows = 20
	defaultRowLimit    = 1000
)

// Source is the read-only view of a session that the pipeline needs.
type Source struct {
	SessionID string
	Relation  schema.Relation
	Engine    query.Engine
	Retriever retrieval.Retriever
}

// FromSession borrows a registered session.
func FromSession(s *session.Session) Source {
	src := Source{SessionID: s.ID, Relation: s.Relation}
	if s.Engine != nil {
		src.Engine = s.Engine
	}
	if s.HasDocuments() {
		src.Retriever = s.Retriever
	}
	return src
}

type Config struct {
	Router     *router.Router
	Translator nl2sql.Translator
	Generator  generator.Generator
	// Recorder is optional. Audit failures are logged and never change the
	// answer.
	Recorder    audit.Recorder
	TopK        int
	PreviewRows int
	RowLimit    int
	Logger      *slog.Logger
}

type Orchestrator struct {
	router      *router.Router
	translator  nl2sql.Translator
	generator   generator.Generator
	recorder    audit.Recorder
	topK        int
	previewRows int
	rowLimit    int
	logger      *slog.Logger
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if cfg.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	o := &Orchestrator{
		router:      cfg.Router,
		translator:  cfg.Translator,
		generator:   cfg.Generator,
		recorder:    cfg.Recorder,
		topK:        cfg.TopK,
		previewRows: cfg.PreviewRows,
		rowLimit:    cfg.RowLimit,
		logger:      cfg.Logger,
	}
	if o.recorder == nil {
		o.recorder = audit.Nop{}
	}
	if o.topK <= 0 {
		o.topK = defaultTopK
	}
	if o.previewRows <= 0 {
		o.previewRows = defaultPreviewRows
	}
	if o.rowLimit <= 0 {
		o.rowLimit = defaultRowLimit
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o, nil
}

// Answer runs the pipeline for one question. It fails only on generator
// errors (wrapping ErrGeneration) and context cancellation. Retrieval, intent
// and query problems are reported in the returned request.
func (o *Orchestrator) Answer(ctx context.Context, src Source, question string) (*Request, error) {
	started := time.Now()
	req := &Request{SessionID: src.SessionID, Question: question}

	state := StateDecideMode
	for state != StateDone {
		req.Trail = append(req.Trail, state)
		nodeStart := time.Now()

		var err error
		switch state {
		case StateDecideMode:
			o.decideMode(req, src)
		case StateRetrieveDocs:
			err = o.retrieveDocs(ctx, req, src)
		case StateRunStructured:
			o.runStructured(ctx, req, src)
		case StateSynthesize:
			err = o.synthesize(ctx, req, src)
		case StateDone:
		}

		observability.ObserveStage(state.String(), time.Since(nodeStart))
		o.logger.DebugContext(ctx, "orchestrator node finished",
			"node", state.String(),
			"mode", req.Mode().String(),
			"session_id", src.SessionID,
			"duration_ms", time.Since(nodeStart).Milliseconds(),
		)
		if err != nil {
			return nil, err
		}
		state = Next(state, req.Mode())
	}
	req.Trail = append(req.Trail, StateDone)

	o.record(ctx, req, time.Since(started))
	return req, nil
}

func (o *Orchestrator) decideMode(req *Request, src Source) {
	req.Route = RouteResult{Decision: o.router.Route(req.Question, src.Relation)}
	observability.ObserveQuestion(req.Mode().String())
}

func (o *Orchestrator) retrieveDocs(ctx context.Context, req *Request, src Source) error {
	req.Retrieval = RetrievalResult{Passages: []retrieval.Passage{}}
	if src.Retriever == nil {
		return nil
	}
	passages, err := src.Retriever.Search(ctx, req.Question, o.topK)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		req.Retrieval.Error = fmt.Sprintf("retrieve documents: %v", err)
		req.Error = req.Retrieval.Error
		o.logger.WarnContext(ctx, "document retrieval failed", "session_id", src.SessionID, "error", err)
		return nil
	}
	req.Retrieval.Passages = passages
	req.Retrieval.Context = retrieval.JoinPassages(passages)
	return nil
}

func (o *Orchestrator) runStructured(ctx context.Context, req *Request, src Source) {
	refined := intent.Refine(req.Question, src.Relation, req.Retrieval.Context)
	exec := ExecutionResult{Intent: refined}

	switch {
	case refined.Err != nil:
		exec.Status = ExecutionRejected
		exec.Error = refined.Err.Error()
	case refined.Kind == intent.KindMetadata:
		exec.Status = ExecutionMetadata
	default:
		o.execute(ctx, &exec, req.Question, src)
	}

	req.Execution = exec
	switch {
	case exec.Error == "":
	case req.Error == "":
		req.Error = exec.Error
	default:
		req.Error += "; " + exec.Error
	}
	observability.ObserveExecution(exec.Status.String())
}

func (o *Orchestrator) execute(ctx context.Context, exec *ExecutionResult, question string, src Source) {
	translated, err := o.translator.Translate(ctx, nl2sql.Request{
		Question: question,
		Intent:   exec.Intent,
		Relation: src.Relation,
	})
	if err != nil {
		exec.Status = ExecutionFailed
		exec.Error = fmt.Sprintf("translate question: %v", err)
		return
	}
	exec.SQL = translated.SQL
	exec.Provider = translated.Provider

	if src.Engine == nil {
		exec.Status = ExecutionFailed
		exec.Error = "no query engine for session"
		return
	}
	result, err := src.Engine.Execute(ctx, query.Request{SQL: translated.SQL, RowLimit: o.rowLimit})
	if err != nil {
		exec.Status = ExecutionFailed
		exec.Error = err.Error()
		return
	}
	exec.Status = ExecutionSucceeded
	exec.Columns = result.Columns
	exec.Preview = result.Preview(o.previewRows)
	exec.TotalRows = result.TotalRows
	exec.ColumnCount = len(result.Columns)
	exec.Truncated = result.Truncated
}

func (o *Orchestrator) synthesize(ctx context.Context, req *Request, src Source) error {
	evidence := generator.Evidence{
		Question:      req.Question,
		Mode:          req.Mode(),
		SourceLabel:   generator.SourceLabel(req.Mode()),
		Passages:      req.Retrieval.Passages,
		SQL:           req.Execution.SQL,
		Columns:       req.Execution.Columns,
		Rows:          req.Execution.Preview,
		TotalRows:     req.Execution.TotalRows,
		BusinessTerms: req.Execution.Intent.BusinessTerms,
		Error:         req.Error,
	}
	if req.Execution.Status == ExecutionMetadata {
		evidence.Schema = src.Relation.Summary()
	}

	answer, err := o.generator.Generate(ctx, evidence)
	if err != nil {
		observability.IncGeneratorFailure()
		o.logger.ErrorContext(ctx, "answer generation failed", "session_id", src.SessionID, "error", err)
		return fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	req.SourceLabel = evidence.SourceLabel
	req.Answer = answer
	return nil
}

func (o *Orchestrator) record(ctx context.Context, req *Request, elapsed time.Duration) {
	entry := audit.Entry{
		SessionID:       req.SessionID,
		TraceID:         observability.TraceIDFromContext(ctx),
		Question:        req.Question,
		Mode:            req.Mode().String(),
		ExecutionStatus: req.Execution.Status.String(),
		SQL:             req.Execution.SQL,
		RowCount:        req.Execution.TotalRows,
		PassageCount:    len(req.Retrieval.Passages),
		Error:           req.Error,
		Answer:          req.Answer,
		LatencyMs:       elapsed.Milliseconds(),
	}
	if err := o.recorder.RecordAsk(ctx, entry); err != nil {
		o.logger.WarnContext(ctx, "record ask failed", "session_id", req.SessionID, "error", err)
	}
}
