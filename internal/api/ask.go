package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/pardeepwalia007/Assignment-RAG/internal/config"
	"github.com/pardeepwalia007/Assignment-RAG/internal/orchestrator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
	"github.com/pardeepwalia007/Assignment-RAG/internal/session"
)

const maxHistoryLimit = 200

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	SessionID       string                       `json:"session_id"`
	FinalAnswer     string                       `json:"final_answer"`
	Mode            router.Mode                  `json:"mode"`
	SourceLabel     string                       `json:"source_label"`
	RunSQL          bool                         `json:"run_sql"`
	SQLRan          bool                         `json:"sql_ran"`
	SQL             string                       `json:"sql"`
	RetrievedChunks int                          `json:"retrieved_chunks"`
	ExecutionStatus orchestrator.ExecutionStatus `json:"execution_status"`
	RowCount        int                          `json:"row_count"`
	ColumnCount     int                          `json:"column_count"`
	Error           string                       `json:"error,omitempty"`
}

type oneShotResponse struct {
	askResponse
	Warnings     []string `json:"warnings"`
	HasDocuments bool     `json:"has_documents"`
}

type routeRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "answer dependencies are not configured", false, nil)
		return
	}
	s, apiErr := lookupSession(deps, r)
	if apiErr != nil {
		apiErr.write(w, r)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	response, apiErr := answer(deps, r, s, request.Question)
	if apiErr != nil {
		apiErr.write(w, r)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// handleOneShotQuery builds a session from a multipart upload and answers the
// question form field in one call. The session stays registered.
func handleOneShotQuery(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil || deps.Answerer == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}
	upload, values, apiErr := readUpload(w, r, cfg.HTTP.MaxUploadBytes)
	if apiErr != nil {
		apiErr.write(w, r)
		return
	}
	question := ""
	if v := values["question"]; len(v) > 0 {
		question = v[0]
	}
	if strings.TrimSpace(question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	created, err := deps.Sessions.Create(r.Context(), upload)
	if err != nil {
		ingestionError(err).write(w, r)
		return
	}
	s, ok := deps.Sessions.Get(created.ID)
	if !ok {
		invalidSession(created.ID).write(w, r)
		return
	}
	response, apiErr := answer(deps, r, s, question)
	if apiErr != nil {
		apiErr.write(w, r)
		return
	}
	writeJSON(w, http.StatusOK, oneShotResponse{
		askResponse:  response,
		Warnings:     created.Warnings,
		HasDocuments: created.HasDocuments,
	})
}

func answer(deps Dependencies, r *http.Request, s *session.Session, question string) (askResponse, *apiError) {
	if strings.TrimSpace(question) == "" {
		return askResponse{}, &apiError{status: http.StatusBadRequest, code: "QUESTION_REQUIRED", message: "question is required"}
	}
	req, err := deps.Answerer.Answer(r.Context(), orchestrator.FromSession(s), question)
	if err != nil {
		if errors.Is(err, orchestrator.ErrGeneration) {
			return askResponse{}, &apiError{
				status:    http.StatusBadGateway,
				code:      "GENERATION_FAILED",
				message:   "the answer could not be generated",
				retryable: true,
				extra:     map[string]any{"details": err.Error(), "session_id": s.ID},
			}
		}
		return askResponse{}, &apiError{
			status:    http.StatusInternalServerError,
			code:      "ASK_FAILED",
			message:   "failed to answer question",
			retryable: true,
			extra:     map[string]any{"details": err.Error(), "session_id": s.ID},
		}
	}
	return askResponse{
		SessionID:       s.ID,
		FinalAnswer:     req.Answer,
		Mode:            req.Mode(),
		SourceLabel:     req.SourceLabel,
		RunSQL:          req.RunSQL(),
		SQLRan:          req.SQLRan(),
		SQL:             req.Execution.SQL,
		RetrievedChunks: len(req.Retrieval.Passages),
		ExecutionStatus: req.Execution.Status,
		RowCount:        req.Execution.TotalRows,
		ColumnCount:     req.Execution.ColumnCount,
		Error:           req.Error,
	}, nil
}

func handleRoute(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Router == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ROUTER_NOT_CONFIGURED", "router is not configured", false, nil)
		return
	}
	var request routeRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid route request body", false, map[string]any{"details": err.Error()})
		return
	}

	var relation schema.Relation
	if id := strings.TrimSpace(request.SessionID); id != "" {
		if deps.Sessions == nil {
			invalidSession(id).write(w, r)
			return
		}
		s, ok := deps.Sessions.Get(id)
		if !ok {
			invalidSession(id).write(w, r)
			return
		}
		relation = s.Relation
	}
	writeJSON(w, http.StatusOK, deps.Router.Route(request.Question, relation))
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AUDIT_NOT_CONFIGURED", "ask history is not enabled", false, nil)
		return
	}
	id := strings.TrimSpace(r.PathValue("session"))
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxHistoryLimit {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 200", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}
	entries, err := deps.History.ListBySession(r.Context(), id, limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "AUDIT_ERROR", "failed to load ask history", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "entries": entries})
}
