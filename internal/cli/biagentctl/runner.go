package biagentctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// request is one HTTP call a command resolves to.
type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("biagentctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8000"), "BI agent API base URL")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 60*time.Second), "HTTP timeout (e.g. 60s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	req, err := buildRequest(command, fs.Args()[1:], stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%s: %v\n\n", command, err)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + req.path
	code, responseBody, err := doRequest(ctx, client, req, endpoint)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func buildRequest(command string, args []string, stderr io.Writer) (request, error) {
	switch command {
	case "health":
		return request{method: http.MethodGet, path: "/v1/health"}, nil
	case "ready":
		return request{method: http.MethodGet, path: "/v1/ready"}, nil
	case "upload":
		if len(args) < 2 {
			return request{}, fmt.Errorf("customers and tickets files are required")
		}
		body, contentType, err := uploadBody(args[0], args[1], args[2:], nil)
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/sessions", body: body, contentType: contentType}, nil
	case "session":
		if len(args) != 1 {
			return request{}, fmt.Errorf("session id is required")
		}
		return request{method: http.MethodGet, path: "/v1/sessions/" + url.PathEscape(args[0])}, nil
	case "ask":
		if len(args) < 2 {
			return request{}, fmt.Errorf("session id and question are required")
		}
		body, err := jsonBody(map[string]string{"question": strings.Join(args[1:], " ")})
		if err != nil {
			return request{}, err
		}
		return request{
			method:      http.MethodPost,
			path:        "/v1/sessions/" + url.PathEscape(args[0]) + "/ask",
			body:        body,
			contentType: "application/json",
		}, nil
	case "query":
		sub := flag.NewFlagSet("query", flag.ContinueOnError)
		sub.SetOutput(stderr)
		question := sub.String("question", "", "question to answer")
		if err := sub.Parse(args); err != nil {
			return request{}, err
		}
		if strings.TrimSpace(*question) == "" {
			return request{}, fmt.Errorf("-question is required")
		}
		if sub.NArg() < 2 {
			return request{}, fmt.Errorf("customers and tickets files are required")
		}
		files := sub.Args()
		body, contentType, err := uploadBody(files[0], files[1], files[2:], map[string]string{"question": *question})
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/query", body: body, contentType: contentType}, nil
	case "route":
		sub := flag.NewFlagSet("route", flag.ContinueOnError)
		sub.SetOutput(stderr)
		sessionID := sub.String("session", "", "route against this session's schema")
		if err := sub.Parse(args); err != nil {
			return request{}, err
		}
		if sub.NArg() == 0 {
			return request{}, fmt.Errorf("question is required")
		}
		body, err := jsonBody(map[string]string{
			"question":   strings.Join(sub.Args(), " "),
			"session_id": *sessionID,
		})
		if err != nil {
			return request{}, err
		}
		return request{method: http.MethodPost, path: "/v1/route", body: body, contentType: "application/json"}, nil
	case "history":
		sub := flag.NewFlagSet("history", flag.ContinueOnError)
		sub.SetOutput(stderr)
		limit := sub.Int("limit", 0, "maximum entries to return")
		if err := sub.Parse(args); err != nil {
			return request{}, err
		}
		if sub.NArg() != 1 {
			return request{}, fmt.Errorf("session id is required")
		}
		path := "/v1/sessions/" + url.PathEscape(sub.Arg(0)) + "/history"
		if *limit > 0 {
			path += "?limit=" + strconv.Itoa(*limit)
		}
		return request{method: http.MethodGet, path: path}, nil
	default:
		return request{}, fmt.Errorf("unknown command %q", command)
	}
}

func uploadBody(customers, tickets string, documents []string, fields map[string]string) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	parts := []struct{ field, path string }{{"customers", customers}, {"tickets", tickets}}
	for _, doc := range documents {
		parts = append(parts, struct{ field, path string }{"documents", doc})
	}
	for _, part := range parts {
		data, err := os.ReadFile(part.path)
		if err != nil {
			return nil, "", fmt.Errorf("read %s file: %w", part.field, err)
		}
		w, err := writer.CreateFormFile(part.field, filepath.Base(part.path))
		if err != nil {
			return nil, "", err
		}
		if _, err := w.Write(data); err != nil {
			return nil, "", err
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func jsonBody(payload any) (io.Reader, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}

func doRequest(ctx context.Context, client *http.Client, r request, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, r.body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: biagentctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                                        GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                                         GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  upload <customers> <tickets> [docs...]        POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  session <id>                                  GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  ask <id> <question>                           POST /v1/sessions/{id}/ask")
	_, _ = fmt.Fprintln(w, "  query -question q <customers> <tickets> [...] POST /v1/query")
	_, _ = fmt.Fprintln(w, "  route [-session id] <question>                POST /v1/route")
	_, _ = fmt.Fprintln(w, "  history [-limit n] <id>                       GET /v1/sessions/{id}/history")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
