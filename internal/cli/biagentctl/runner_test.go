package biagentctl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type captured struct {
	method string
	path   string
	query  string
	body   []byte
	form   map[string][]string
	files  map[string][]string
}

func newCaptureServer(t *testing.T, got *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		if r.Header.Get("Content-Type") == "application/json" {
			got.body, _ = io.ReadAll(r.Body)
		} else if err := r.ParseMultipartForm(1 << 20); err == nil {
			got.form = r.MultipartForm.Value
			got.files = map[string][]string{}
			for field, headers := range r.MultipartForm.File {
				for _, h := range headers {
					got.files[field] = append(got.files[field], h.Filename)
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunHealthCommand(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, &got)
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "health"}, Options{
		Stdout:  &stdout,
		Stderr:  &stderr,
		Timeout: 2 * time.Second,
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if got.method != http.MethodGet || got.path != "/v1/health" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	if stdout.Len() == 0 {
		t.Fatal("expected command output")
	}
}

func TestRunUploadCommand(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, &got)
	defer srv.Close()

	dir := t.TempDir()
	customers := writeFile(t, dir, "customers.csv", "customer_id,name\n1,Ema Patel\n")
	tickets := writeFile(t, dir, "tickets.csv", "ticket_id,customer_id\n10,1\n")
	policy := writeFile(t, dir, "refund.txt", "Refunds are available within 30 days.")

	code := Run(context.Background(), []string{"-base-url", srv.URL, "upload", customers, tickets, policy}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodPost || got.path != "/v1/sessions" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	want := map[string][]string{
		"customers": {"customers.csv"},
		"tickets":   {"tickets.csv"},
		"documents": {"refund.txt"},
	}
	if diff := cmp.Diff(want, got.files); diff != "" {
		t.Fatalf("uploaded files mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAskCommand(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, &got)
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "ask", "s1", "How", "many", "open", "tickets?"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.method != http.MethodPost || got.path != "/v1/sessions/s1/ask" {
		t.Fatalf("request = %s %s", got.method, got.path)
	}
	var payload map[string]string
	if err := json.Unmarshal(got.body, &payload); err != nil {
		t.Fatalf("decode body error = %v", err)
	}
	if payload["question"] != "How many open tickets?" {
		t.Fatalf("question = %q", payload["question"])
	}
}

func TestRunQueryCommand(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, &got)
	defer srv.Close()

	dir := t.TempDir()
	customers := writeFile(t, dir, "customers.csv", "customer_id\n1\n")
	tickets := writeFile(t, dir, "tickets.csv", "ticket_id\n10\n")

	code := Run(context.Background(), []string{"-base-url", srv.URL, "query", "-question", "How many tickets?", customers, tickets}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if got.path != "/v1/query" {
		t.Fatalf("path = %s", got.path)
	}
	if diff := cmp.Diff([]string{"How many tickets?"}, got.form["question"]); diff != "" {
		t.Fatalf("question mismatch (-want +got):\n%s", diff)
	}
}

func TestRunRouteAndHistoryCommands(t *testing.T) {
	var got captured
	srv := newCaptureServer(t, &got)
	defer srv.Close()

	code := Run(context.Background(), []string{"-base-url", srv.URL, "route", "-session", "s1", "What", "is", "the", "refund", "policy?"}, Options{})
	if code != 0 {
		t.Fatalf("route exit code = %d", code)
	}
	var payload map[string]string
	if err := json.Unmarshal(got.body, &payload); err != nil {
		t.Fatalf("decode body error = %v", err)
	}
	want := map[string]string{"question": "What is the refund policy?", "session_id": "s1"}
	if diff := cmp.Diff(want, payload); diff != "" {
		t.Fatalf("route payload mismatch (-want +got):\n%s", diff)
	}

	code = Run(context.Background(), []string{"-base-url", srv.URL, "history", "-limit", "5", "s1"}, Options{})
	if code != 0 {
		t.Fatalf("history exit code = %d", code)
	}
	if got.method != http.MethodGet || got.path != "/v1/sessions/s1/history" || got.query != "limit=5" {
		t.Fatalf("request = %s %s?%s", got.method, got.path, got.query)
	}
}

func TestRunReturnsErrorOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"INVALID_SESSION"}`))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"-base-url", srv.URL, "session", "gone"}, Options{Stderr: &stderr})
	if code != 1 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"unknown"},
		{"ask", "s1"},
		{"upload", "customers.csv"},
		{"query", "customers.csv", "tickets.csv"},
	} {
		var stderr bytes.Buffer
		code := Run(context.Background(), args, Options{Stderr: &stderr})
		if code != 2 {
			t.Fatalf("%v: exit code = %d", args, code)
		}
		if stderr.Len() == 0 {
			t.Fatalf("%v: expected usage output", args)
		}
	}
}

func TestRunMissingUploadFile(t *testing.T) {
	var stderr bytes.Buffer
	code := Run(context.Background(), []string{"upload", filepath.Join(t.TempDir(), "missing.csv"), "tickets.csv"}, Options{Stderr: &stderr})
	if code != 2 {
		t.Fatalf("exit code = %d", code)
	}
}
