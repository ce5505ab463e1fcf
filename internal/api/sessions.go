package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pardeepwalia007/Assignment-RAG/internal/config"
	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
	"github.com/pardeepwalia007/Assignment-RAG/internal/session"
)

const multipartMemory = 32 << 20

type sessionResponse struct {
	SessionID    string                     `json:"session_id"`
	Table        string                     `json:"table"`
	JoinKey      string                     `json:"join_key"`
	Relation     schema.Relation            `json:"relation"`
	Tables       map[string]schema.Relation `json:"tables"`
	Documents    []string                   `json:"documents"`
	Archived     []string                   `json:"archived,omitempty"`
	Warnings     []string                   `json:"warnings"`
	HasDocuments bool                       `json:"has_documents"`
	CreatedAt    time.Time                  `json:"created_at"`
}

// apiError is a response that has not been written yet.
type apiError struct {
	status    int
	code      string
	message   string
	retryable bool
	extra     map[string]any
}

func (e *apiError) write(w http.ResponseWriter, r *http.Request) {
	writeError(r.Context(), w, e.status, e.code, e.message, e.retryable, e.extra)
}

func handleCreateSession(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session dependencies are not configured", false, nil)
		return
	}
	upload, _, apiErr := readUpload(w, r, cfg.HTTP.MaxUploadBytes)
	if apiErr != nil {
		apiErr.write(w, r)
		return
	}
	created, err := deps.Sessions.Create(r.Context(), upload)
	if err != nil {
		ingestionError(err).write(w, r)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	s, apiErr := lookupSession(deps, r)
	if apiErr != nil {
		apiErr.write(w, r)
		return
	}
	documents := s.Documents
	if documents == nil {
		documents = []string{}
	}
	warnings := s.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:    s.ID,
		Table:        s.Table,
		JoinKey:      s.JoinKey,
		Relation:     s.Relation,
		Tables:       s.Tables,
		Documents:    documents,
		Archived:     s.Archived,
		Warnings:     warnings,
		HasDocuments: s.HasDocuments(),
		CreatedAt:    s.CreatedAt,
	})
}

func lookupSession(deps Dependencies, r *http.Request) (*session.Session, *apiError) {
	if deps.Sessions == nil {
		return nil, &apiError{status: http.StatusNotImplemented, code: "SESSIONS_NOT_CONFIGURED", message: "session dependencies are not configured"}
	}
	id := strings.TrimSpace(r.PathValue("session"))
	s, ok := deps.Sessions.Get(id)
	if !ok {
		return nil, invalidSession(id)
	}
	return s, nil
}

func invalidSession(id string) *apiError {
	return &apiError{
		status:  http.StatusNotFound,
		code:    "INVALID_SESSION",
		message: "session not found; upload the data again to start a new session",
		extra:   map[string]any{"session_id": id},
	}
}

// readUpload parses a multipart body with customers, tickets and optional
// documents parts. Other form values are returned for callers that need them.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (ingest.Upload, map[string][]string, *apiError) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return ingest.Upload{}, nil, &apiError{
				status:  http.StatusRequestEntityTooLarge,
				code:    "UPLOAD_TOO_LARGE",
				message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			}
		}
		return ingest.Upload{}, nil, &apiError{
			status:  http.StatusBadRequest,
			code:    "INVALID_MULTIPART",
			message: "request body must be multipart/form-data",
			extra:   map[string]any{"details": err.Error()},
		}
	}
	form := r.MultipartForm

	var upload ingest.Upload
	for _, part := range []struct {
		field string
		dest  *ingest.TabularFile
	}{{"customers", &upload.Customers}, {"tickets", &upload.Tickets}} {
		headers := form.File[part.field]
		if len(headers) != 1 {
			return ingest.Upload{}, nil, &apiError{
				status:  http.StatusBadRequest,
				code:    "UPLOAD_INCOMPLETE",
				message: fmt.Sprintf("exactly one %s file is required", part.field),
				extra:   map[string]any{"field": part.field},
			}
		}
		data, err := readPart(headers[0])
		if err != nil {
			return ingest.Upload{}, nil, unreadablePart(part.field, err)
		}
		*part.dest = ingest.TabularFile{Name: headers[0].Filename, Data: data}
	}
	for _, header := range form.File["documents"] {
		data, err := readPart(header)
		if err != nil {
			return ingest.Upload{}, nil, unreadablePart("documents", err)
		}
		upload.Documents = append(upload.Documents, ingest.DocumentFile{Name: header.Filename, Data: data})
	}
	return upload, form.Value, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

func unreadablePart(field string, err error) *apiError {
	return &apiError{
		status:  http.StatusBadRequest,
		code:    "INVALID_MULTIPART",
		message: fmt.Sprintf("could not read %s part", field),
		extra:   map[string]any{"details": err.Error()},
	}
}

func ingestionError(err error) *apiError {
	details := map[string]any{"details": err.Error()}
	switch {
	case errors.Is(err, ingest.ErrTooManyDocuments):
		return &apiError{status: http.StatusBadRequest, code: "TOO_MANY_DOCUMENTS", message: "too many documents", extra: details}
	case errors.Is(err, ingest.ErrNoUsableDocuments):
		return &apiError{status: http.StatusUnprocessableEntity, code: "NO_USABLE_DOCUMENTS", message: "none of the uploaded documents contain usable text", extra: details}
	case errors.Is(err, ingest.ErrUnsupportedFileType):
		return &apiError{status: http.StatusUnsupportedMediaType, code: "UNSUPPORTED_FILE_TYPE", message: "unsupported file type", extra: details}
	case errors.Is(err, ingest.ErrEmptyFile):
		return &apiError{status: http.StatusBadRequest, code: "EMPTY_FILE", message: "uploaded file is empty", extra: details}
	case errors.Is(err, ingest.ErrUnreadable):
		return &apiError{status: http.StatusUnprocessableEntity, code: "UNREADABLE_FILE", message: "uploaded file could not be read", extra: details}
	default:
		return &apiError{status: http.StatusInternalServerError, code: "SESSION_CREATE_FAILED", message: "failed to build session", retryable: true, extra: details}
	}
}
