package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pardeepwalia007/Assignment-RAG/internal/audit"
	"github.com/pardeepwalia007/Assignment-RAG/internal/config"
	"github.com/pardeepwalia007/Assignment-RAG/internal/ingest"
	"github.com/pardeepwalia007/Assignment-RAG/internal/orchestrator"
	"github.com/pardeepwalia007/Assignment-RAG/internal/router"
	"github.com/pardeepwalia007/Assignment-RAG/internal/schema"
	"github.com/pardeepwalia007/Assignment-RAG/internal/session"
)

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("bi-agent-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func ticketsRelation() schema.Relation {
	return schema.FromColumns("customer_tickets", []schema.Column{
		{Name: "customer_id", Type: "BIGINT"},
		{Name: "name", Type: "VARCHAR"},
		{Name: "ticket_id", Type: "BIGINT"},
		{Name: "status", Type: "VARCHAR"},
		{Name: "created_at", Type: "DATE"},
	})
}

type fakeSessions struct {
	sessions  map[string]*session.Session
	createErr error
	uploads   []ingest.Upload
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]*session.Session{
		"s1": {ID: "s1", Table: "customer_tickets", JoinKey: "customer_id", Relation: ticketsRelation()},
	}}
}

func (f *fakeSessions) Create(_ context.Context, upload ingest.Upload) (session.Created, error) {
	f.uploads = append(f.uploads, upload)
	if f.createErr != nil {
		return session.Created{}, f.createErr
	}
	id := fmt.Sprintf("new-%d", len(f.uploads))
	f.sessions[id] = &session.Session{ID: id, Relation: ticketsRelation()}
	return session.Created{ID: id, Warnings: []string{}}, nil
}

func (f *fakeSessions) Get(id string) (*session.Session, bool) {
	s, ok := f.sessions[id]
	return s, ok
}

type fakeAnswerer struct {
	err       error
	questions []string
	sources   []orchestrator.Source
}

func (f *fakeAnswerer) Answer(_ context.Context, src orchestrator.Source, question string) (*orchestrator.Request, error) {
	f.questions = append(f.questions, question)
	f.sources = append(f.sources, src)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Request{
		SessionID:   src.SessionID,
		Question:    question,
		Route:       orchestrator.RouteResult{Decision: router.Decision{Mode: router.ModeStructuredOnly}},
		SourceLabel: "Structured data",
		Answer:      "There are 2 open tickets.",
		Execution: orchestrator.ExecutionResult{
			Status:      orchestrator.ExecutionSucceeded,
			SQL:         "SELECT COUNT(*) AS ticket_count FROM customer_tickets",
			TotalRows:   1,
			ColumnCount: 1,
		},
	}, nil
}

type fakeHistory struct {
	audit.Nop
	entries []audit.Entry
	limit   int
}

func (f *fakeHistory) ListBySession(_ context.Context, _ string, limit int) ([]audit.Entry, error) {
	f.limit = limit
	return f.entries, nil
}

func multipartUpload(t *testing.T, fields map[string]string, files map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for field, names := range files {
		for _, name := range names {
			part, err := writer.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("CreateFormFile() error = %v", err)
			}
			if _, err := part.Write([]byte("customer_id,name\n1,Ema Patel\n")); err != nil {
				t.Fatalf("write part error = %v", err)
			}
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("multipart close error = %v", err)
	}
	return body, writer.FormDataContentType()
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response error = %v body=%s", err, rr.Body.String())
	}
	return payload
}

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody(t, rr)["service"]; got != "bi-agent-api" {
		t.Fatalf("service = %v", got)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["error_code"] != "NOT_READY" || payload["retryable"] != true {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
	if payload["trace_id"] == "" {
		t.Fatal("expected trace id in error payload")
	}
}

func TestCreateSessionFromMultipartUpload(t *testing.T) {
	sessions := newFakeSessions()
	h := NewHandler(testConfig(t), Dependencies{Sessions: sessions})

	body, contentType := multipartUpload(t, nil, map[string][]string{
		"customers": {"customers.csv"},
		"tickets":   {"tickets.csv"},
		"documents": {"refund.txt", "shipping.md"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if got := decodeBody(t, rr)["session_id"]; got != "new-1" {
		t.Fatalf("session_id = %v", got)
	}
	if len(sessions.uploads) != 1 {
		t.Fatalf("uploads = %d", len(sessions.uploads))
	}
	upload := sessions.uploads[0]
	if upload.Customers.Name != "customers.csv" || upload.Tickets.Name != "tickets.csv" {
		t.Fatalf("unexpected tabular parts: %q %q", upload.Customers.Name, upload.Tickets.Name)
	}
	var names []string
	for _, doc := range upload.Documents {
		names = append(names, doc.Name)
	}
	if diff := cmp.Diff([]string{"refund.txt", "shipping.md"}, names); diff != "" {
		t.Fatalf("document names mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateSessionRequiresBothTables(t *testing.T) {
	sessions := newFakeSessions()
	h := NewHandler(testConfig(t), Dependencies{Sessions: sessions})

	body, contentType := multipartUpload(t, nil, map[string][]string{"customers": {"customers.csv"}})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody(t, rr)["error_code"]; got != "UPLOAD_INCOMPLETE" {
		t.Fatalf("error_code = %v", got)
	}
	if len(sessions.uploads) != 0 {
		t.Fatal("builder must not run for an incomplete upload")
	}
}

func TestCreateSessionRejectsNonMultipartBody(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Sessions: newFakeSessions()})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"x":1}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody(t, rr)["error_code"]; got != "INVALID_MULTIPART" {
		t.Fatalf("error_code = %v", got)
	}
}

func TestCreateSessionMapsIngestionErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: fmt.Errorf("wrap: %w", ingest.ErrTooManyDocuments), status: http.StatusBadRequest, code: "TOO_MANY_DOCUMENTS"},
		{err: ingest.ErrNoUsableDocuments, status: http.StatusUnprocessableEntity, code: "NO_USABLE_DOCUMENTS"},
		{err: ingest.ErrUnsupportedFileType, status: http.StatusUnsupportedMediaType, code: "UNSUPPORTED_FILE_TYPE"},
		{err: errors.New("disk full"), status: http.StatusInternalServerError, code: "SESSION_CREATE_FAILED"},
	}
	for _, tc := range tests {
		sessions := newFakeSessions()
		sessions.createErr = tc.err
		h := NewHandler(testConfig(t), Dependencies{Sessions: sessions})

		body, contentType := multipartUpload(t, nil, map[string][]string{
			"customers": {"customers.csv"},
			"tickets":   {"tickets.csv"},
		})
		req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rr.Code, tc.status)
		}
		if got := decodeBody(t, rr)["error_code"]; got != tc.code {
			t.Fatalf("%v: error_code = %v, want %s", tc.err, got, tc.code)
		}
	}
}

func TestCreateSessionRejectsOversizedUpload(t *testing.T) {
	cfg, err := config.Load("bi-agent-api", mapLookup(map[string]string{
		"BIAGENT_HTTP_MAX_UPLOAD_BYTES": "16",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	h := NewHandler(cfg, Dependencies{Sessions: newFakeSessions()})

	body, contentType := multipartUpload(t, nil, map[string][]string{
		"customers": {"customers.csv"},
		"tickets":   {"tickets.csv"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestGetSession(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Sessions: newFakeSessions()})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var payload sessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if payload.SessionID != "s1" || payload.Table != "customer_tickets" || payload.HasDocuments {
		t.Fatalf("unexpected session payload: %+v", payload)
	}
	if payload.Documents == nil || payload.Warnings == nil {
		t.Fatal("documents and warnings must be empty lists, not null")
	}
}

func TestUnknownSessionReturnsInvalidSession(t *testing.T) {
	answerer := &fakeAnswerer{}
	h := NewHandler(testConfig(t), Dependencies{Sessions: newFakeSessions(), Answerer: answerer})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/v1/sessions/missing", nil),
		httptest.NewRequest(http.MethodPost, "/v1/sessions/missing/ask", strings.NewReader(`{"question":"How many tickets?"}`)),
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s status = %d", req.Method, req.URL.Path, rr.Code)
		}
		if got := decodeBody(t, rr)["error_code"]; got != "INVALID_SESSION" {
			t.Fatalf("error_code = %v", got)
		}
	}
	if len(answerer.questions) != 0 {
		t.Fatal("answerer must not run for an unknown session")
	}
}

func TestAskReturnsAnswer(t *testing.T) {
	answerer := &fakeAnswerer{}
	h := NewHandler(testConfig(t), Dependencies{Sessions: newFakeSessions(), Answerer: answerer})

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/ask", strings.NewReader(`{"question":"How many open tickets are there?"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	want := map[string]any{
		"session_id":       "s1",
		"final_answer":     "There are 2 open tickets.",
		"mode":             "structured_only",
		"source_label":     "Structured data",
		"run_sql":          true,
		"sql_ran":          true,
		"sql":              "SELECT COUNT(*) AS ticket_count FROM customer_tickets",
		"retrieved_chunks": float64(0),
		"execution_status": "succeeded",
		"row_count":        float64(1),
		"column_count":     float64(1),
	}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("ask payload mismatch (-want +got):\n%s", diff)
	}
	if len(answerer.sources) != 1 || answerer.sources[0].SessionID != "s1" || answerer.sources[0].Retriever != nil {
		t.Fatalf("unexpected source: %+v", answerer.sources)
	}
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	answerer := &fakeAnswerer{}
	h := NewHandler(testConfig(t), Dependencies{Sessions: newFakeSessions(), Answerer: answerer})

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/ask", strings.NewReader(`{"question":"   "}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody(t, rr)["error_code"]; got != "QUESTION_REQUIRED" {
		t.Fatalf("error_code = %v", got)
	}
	if len(answerer.questions) != 0 {
		t.Fatal("answerer must not run for a blank question")
	}
}

func TestAskRejectsUnknownFields(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Sessions: newFakeSessions(), Answerer: &fakeAnswerer{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/ask", strings.NewReader(`{"question":"q","mode":"hybrid"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeBody(t, rr)["error_code"]; got != "INVALID_JSON" {
		t.Fatalf("error_code = %v", got)
	}
}

func TestAskGenerationFailureReturns502(t *testing.T) {
	answerer := &fakeAnswerer{err: fmt.Errorf("%w: upstream timeout", orchestrator.ErrGeneration)}
	h := NewHandler(testConfig(t), Dependencies{Sessions: newFakeSessions(), Answerer: answerer})

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/ask", strings.NewReader(`{"question":"What is the refund policy?"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["error_code"] != "GENERATION_FAILED" || payload["retryable"] != true {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestOneShotQueryCreatesSessionAndAnswers(t *testing.T) {
	sessions := newFakeSessions()
	answerer := &fakeAnswerer{}
	h := NewHandler(testConfig(t), Dependencies{Sessions: sessions, Answerer: answerer})

	body, contentType := multipartUpload(t, map[string]string{"question": "How many open tickets are there?"}, map[string][]string{
		"customers": {"customers.csv"},
		"tickets":   {"tickets.csv"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeBody(t, rr)
	if payload["session_id"] != "new-1" || payload["final_answer"] != "There are 2 open tickets." {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if _, ok := payload["warnings"].([]any); !ok {
		t.Fatalf("warnings = %#v", payload["warnings"])
	}
	if diff := cmp.Diff([]string{"How many open tickets are there?"}, answerer.questions); diff != "" {
		t.Fatalf("questions mismatch (-want +got):\n%s", diff)
	}
}

func TestOneShotQueryRequiresQuestion(t *testing.T) {
	sessions := newFakeSessions()
	h := NewHandler(testConfig(t), Dependencies{Sessions: sessions, Answerer: &fakeAnswerer{}})

	body, contentType := multipartUpload(t, nil, map[string][]string{
		"customers": {"customers.csv"},
		"tickets":   {"tickets.csv"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/query", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(sessions.uploads) != 0 {
		t.Fatal("no session should be built without a question")
	}
}

func TestRouteEndpoint(t *testing.T) {
	r, err := router.NewDefault()
	if err != nil {
		t.Fatalf("NewDefault() error = %v", err)
	}
	h := NewHandler(testConfig(t), Dependencies{Sessions: newFakeSessions(), Router: r})

	tests := []struct {
		body string
		want string
	}{
		{body: `{"question":"What is the standard refund policy?"}`, want: "document_only"},
		{body: `{"question":"How many open tickets are there?","session_id":"s1"}`, want: "structured_only"},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/route", strings.NewReader(tc.body)))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", tc.body, rr.Code)
		}
		if got := decodeBody(t, rr)["mode"]; got != tc.want {
			t.Fatalf("%s: mode = %v, want %s", tc.body, got, tc.want)
		}
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/route", strings.NewReader(`{"question":"q","session_id":"gone"}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", rr.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/history", nil))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status without audit = %d", rr.Code)
	}

	history := &fakeHistory{entries: []audit.Entry{{ID: 7, SessionID: "s1", Question: "How many tickets?", Mode: "structured_only"}}}
	h = NewHandler(testConfig(t), Dependencies{History: history})

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/history?limit=5", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if history.limit != 5 {
		t.Fatalf("limit = %d", history.limit)
	}
	entries, ok := decodeBody(t, rr)["entries"].([]any)
	if !ok || len(entries) != 1 {
		t.Fatalf("entries = %#v", entries)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions/s1/history?limit=500", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("out of range limit status = %d", rr.Code)
	}
}

func TestCombineReadinessChecks(t *testing.T) {
	calls := 0
	ok := func(context.Context) error {
		calls++
		return nil
	}
	failing := func(context.Context) error { return errors.New("down") }

	if err := CombineReadinessChecks(ok, nil, ok)(context.Background()); err != nil {
		t.Fatalf("combined ok checks error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
	if err := CombineReadinessChecks(ok, failing)(context.Background()); err == nil {
		t.Fatal("expected combined check to fail")
	}
}

func TestCheckArchiveConfig(t *testing.T) {
	cfg := testConfig(t)
	if err := CheckArchiveConfig(cfg)(context.Background()); err != nil {
		t.Fatalf("disabled archive error = %v", err)
	}
	cfg.Archive.Enabled = true
	cfg.Archive.Endpoint = "localhost:9000"
	if err := CheckArchiveConfig(cfg)(context.Background()); err == nil {
		t.Fatal("expected missing bucket error")
	}
}
