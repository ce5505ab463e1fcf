// Package mcp exposes session creation and question answering as MCP tools
// over the stdio transport.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/orchestrator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
	"github.com/pardeepwalia007/Assignment-RAG/internal/session"
)

const Version = "1.0.0"

const (
	ToolCreateSession = "create_session"
	ToolAsk           = "ask"
)

type SessionStore interface {
	Create(ctx context.Context, upload ingest.Upload) (session.Created, error)
	Get(id string) (*session.Session, bool)
}

type Answerer interface {
	Answer(ctx context.Context, src orchestrator.Source, question string) (*orchestrator.Request, error)
}

type Dependencies struct {
	Sessions SessionStore
	Answerer Answerer
	Logger   *slog.Logger
	// MaxUploadBytes caps the decoded size of one create_session call.
	// Zero disables the cap.
	MaxUploadBytes int64
}

// NewServer registers the create_session and ask tools.
func NewServer(name string, deps Dependencies) (*server.MCPServer, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if name == "" {
		name = "bi-agent-mcp"
	}

	mcpServer := server.NewMCPServer(
		name,
		Version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Upload a customers table and a tickets table (plus optional PDF or text documents) with create_session, then ask business questions about them with ask."),
	)
	h := &handlers{deps: deps}
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema(ToolCreateSession, "Build a query session from customers and tickets tables and optional documents", createSessionSchema),
		h.createSession,
	)
	mcpServer.AddTool(
		mcp.NewToolWithRawSchema(ToolAsk, "Answer a question about the data and documents of an existing session", askSchema),
		h.ask,
	)
	return mcpServer, nil
}

var createSessionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "customers": {"$ref": "#/$defs/file", "description": "Customers table as CSV, TSV or Parquet"},
    "tickets": {"$ref": "#/$defs/file", "description": "Tickets table as CSV, TSV or Parquet"},
    "documents": {
      "type": "array",
      "description": "Optional PDF or plain text documents",
      "items": {"$ref": "#/$defs/file"}
    }
  },
  "required": ["customers", "tickets"],
  "$defs": {
    "file": {
      "type": "object",
      "properties": {
        "filename": {"type": "string", "description": "Original file name; the extension selects the reader"},
        "content": {"type": "string", "description": "File contents"},
        "encoding": {"type": "string", "enum": ["text", "base64"], "default": "text"}
      },
      "required": ["filename", "content"]
    }
  }
}`)

var askSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "session_id": {"type": "string", "description": "Id returned by create_session"},
    "question": {"type": "string", "description": "Natural language business question"}
  },
  "required": ["session_id", "question"]
}`)

type fileArg struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type createSessionArgs struct {
	Customers *fileArg  `json:"customers"`
	Tickets   *fileArg  `json:"tickets"`
	Documents []fileArg `json:"documents"`
}

type askArgs struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type createSessionResult struct {
	SessionID string   `json:"session_id"`
	Warnings  []string `json:"warnings"`
	HasDocs   bool     `json:"has_docs"`
}

type askResult struct {
	FinalAnswer     string      `json:"final_answer"`
	Mode            router.Mode `json:"mode"`
	RunSQL          bool        `json:"run_sql"`
	SQLRan          bool        `json:"sql_ran"`
	SQL             string      `json:"sql"`
	RetrievedChunks int         `json:"retrieved_chunks"`
	Error           string      `json:"error,omitempty"`
}

type toolError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type handlers struct {
	deps Dependencies
}

func (h *handlers) createSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args createSessionArgs
	if err := bindArguments(request, &args); err != nil {
		return errorResult("INVALID_ARGUMENTS", err.Error())
	}
	upload, err := h.upload(args)
	if err != nil {
		return errorResult("INVALID_ARGUMENTS", err.Error())
	}
	created, err := h.deps.Sessions.Create(ctx, upload)
	if err != nil {
		h.deps.Logger.WarnContext(ctx, "mcp session create failed", slog.Any("error", err))
		return errorResult(ingestionCode(err), err.Error())
	}
	warnings := created.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return jsonResult(createSessionResult{
		SessionID: created.ID,
		Warnings:  warnings,
		HasDocs:   created.HasDocuments,
	})
}

func (h *handlers) ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args askArgs
	if err := bindArguments(request, &args); err != nil {
		return errorResult("INVALID_ARGUMENTS", err.Error())
	}
	s, ok := h.deps.Sessions.Get(args.SessionID)
	if !ok {
		return errorResult("INVALID_SESSION", "Session not found. Call create_session first.")
	}
	if strings.TrimSpace(args.Question) == "" {
		return errorResult("QUESTION_REQUIRED", "question is required")
	}
	req, err := h.deps.Answerer.Answer(ctx, orchestrator.FromSession(s), args.Question)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "mcp ask failed", slog.String("session_id", s.ID), slog.Any("error", err))
		if errors.Is(err, orchestrator.ErrGeneration) {
			return errorResult("GENERATION_FAILED", err.Error())
		}
		return errorResult("ASK_FAILED", err.Error())
	}
	return jsonResult(askResult{
		FinalAnswer:     req.Answer,
		Mode:            req.Mode(),
		RunSQL:          req.RunSQL(),
		SQLRan:          req.SQLRan(),
		SQL:             req.Execution.SQL,
		RetrievedChunks: len(req.Retrieval.Passages),
		Error:           req.Error,
	})
}

func (h *handlers) upload(args createSessionArgs) (ingest.Upload, error) {
	if args.Customers == nil {
		return ingest.Upload{}, errors.New("customers file is required")
	}
	if args.Tickets == nil {
		return ingest.Upload{}, errors.New("tickets file is required")
	}
	var upload ingest.Upload
	var total int64
	decode := func(field string, f fileArg) ([]byte, error) {
		data, err := f.decode()
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", field, f.Filename, err)
		}
		total += int64(len(data))
		if h.deps.MaxUploadBytes > 0 && total > h.deps.MaxUploadBytes {
			return nil, fmt.Errorf("upload exceeds %d bytes", h.deps.MaxUploadBytes)
		}
		return data, nil
	}

	data, err := decode("customers", *args.Customers)
	if err != nil {
		return ingest.Upload{}, err
	}
	upload.Customers = ingest.TabularFile{Name: args.Customers.Filename, Data: data}
	if data, err = decode("tickets", *args.Tickets); err != nil {
		return ingest.Upload{}, err
	}
	upload.Tickets = ingest.TabularFile{Name: args.Tickets.Filename, Data: data}
	for _, doc := range args.Documents {
		data, err := decode("document", doc)
		if err != nil {
			return ingest.Upload{}, err
		}
		upload.Documents = append(upload.Documents, ingest.DocumentFile{Name: doc.Filename, Data: data})
	}
	return upload, nil
}

func (f fileArg) decode() ([]byte, error) {
	if strings.TrimSpace(f.Filename) == "" {
		return nil, errors.New("filename is required")
	}
	switch strings.ToLower(f.Encoding) {
	case "", "text":
		return []byte(f.Content), nil
	case "base64":
		return base64.StdEncoding.DecodeString(f.Content)
	default:
		return nil, fmt.Errorf("unsupported encoding %q", f.Encoding)
	}
}

// bindArguments decodes the loosely typed tool arguments into dst.
func bindArguments(request mcp.CallToolRequest, dst any) error {
	raw, err := json.Marshal(request.GetArguments())
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

func errorResult(code, message string) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(toolError{Error: code, Message: message})
	if err != nil {
		return nil, fmt.Errorf("encode tool error: %w", err)
	}
	return mcp.NewToolResultError(string(body)), nil
}

func ingestionCode(err error) string {
	switch {
	case errors.Is(err, ingest.ErrTooManyDocuments):
		return "TOO_MANY_DOCUMENTS"
	case errors.Is(err, ingest.ErrNoUsableDocuments):
		return "NO_USABLE_DOCUMENTS"
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return "UNSUPPORTED_FILE_TYPE"
	case errors.Is(err, ingest.ErrEmptyFile):
		return "EMPTY_FILE"
	case errors.Is(err, ingest.ErrUnreadable):
		return "UNREADABLE_FILE"
	default:
		return "SESSION_CREATE_FAILED"
	}
}
