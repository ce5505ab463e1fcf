package orchestrator

import (
	"fmt"

	"github.com/pardeepwalia007/Assignment-RAG/internal/intent"
	"github.com/pardeepwalia007/Assignment-RAG/internal/retrieval"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
)

type State int

const (
	StateDecideMode State = iota
	StateRetrieveDocs
	StateRunStructured
	StateSynthesize
	StateDone
)

func (s State) String() string {
	switch s {
	case StateDecideMode:
		return "decide_mode"
	case StateRetrieveDocs:
		return "retrieve_docs"
	case StateRunStructured:
		return "run_structured"
	case StateSynthesize:
		return "synthesize"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Next returns the state that follows current for a request routed to mode.
func Next(current State, mode router.Mode) State {
	switch current {
	case StateDecideMode:
		if mode.NeedsDocuments() {
			return StateRetrieveDocs
		}
		return StateRunStructured
	case StateRetrieveDocs:
		if mode.NeedsStructured() {
			return StateRunStructured
		}
		return StateSynthesize
	case StateRunStructured:
		return StateSynthesize
	case StateSynthesize, StateDone:
		return StateDone
	default:
		return StateDone
	}
}

type RouteResult struct {
	Decision router.Decision `json:"decision"`
}

type RetrievalResult struct {
	Passages []retrieval.Passage `json:"passages"`
	// Context is the joined passage text handed to the intent refiner.
	Context string `json:"-"`
	Error   string `json:"error,omitempty"`
}

type ExecutionStatus int

const (
	// ExecutionSkipped means the mode never reached run_structured.
	ExecutionSkipped ExecutionStatus = iota
	ExecutionMetadata
	ExecutionRejected
	ExecutionFailed
	ExecutionSucceeded
)

func (s ExecutionStatus) String() string {
	switch s {
	case ExecutionSkipped:
		return "skipped"
	case ExecutionMetadata:
		return "metadata"
	case ExecutionRejected:
		return "rejected"
	case ExecutionFailed:
		return "failed"
	case ExecutionSucceeded:
		return "succeeded"
	default:
		return fmt.Sprintf("execution(%d)", int(s))
	}
}

func (s ExecutionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ExecutionResult is the outcome of run_structured. Preview holds at most the
// configured preview rows; TotalRows and ColumnCount describe the full result.
type ExecutionResult struct {
	Status      ExecutionStatus    `json:"status"`
	Intent      intent.QueryIntent `json:"intent"`
	SQL         string             `json:"sql,omitempty"`
	Provider    string             `json:"provider,omitempty"`
	Columns     []string           `json:"columns,omitempty"`
	Preview     [][]any            `json:"preview,omitempty"`
	TotalRows   int                `json:"total_rows"`
	ColumnCount int                `json:"column_count"`
	Truncated   bool               `json:"truncated,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Request is the state carried through one answer. Each node fills its own
// result field.
type Request struct {
	SessionID   string          `json:"session_id"`
	Question    string          `json:"question"`
	Route       RouteResult     `json:"route"`
	Retrieval   RetrievalResult `json:"retrieval"`
	Execution   ExecutionResult `json:"execution"`
	SourceLabel string          `json:"source_label"`
	Answer      string          `json:"answer"`
	Error       string          `json:"error,omitempty"`
	Trail       []State         `json:"trail"`
}

func (r *Request) Mode() router.Mode {
	return r.Route.Decision.Mode
}

// RunSQL reports whether the routed mode called for structured execution.
func (r *Request) RunSQL() bool {
	return r.Mode().NeedsStructured()
}

// SQLRan reports whether a query was executed successfully.
func (r *Request) SQLRan() bool {
	return r.Execution.Status == ExecutionSucceeded
}
