package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kbqa-dev/kbqa-go/internal/orchestrator"
	"github.com/kbqa-dev/kbqa-go/internal/prompt"
	"github.com/kbqa-dev/kbqa-go/internal/registry"
	"github.com/kbqa-dev/kbqa-go/internal/store"
)

// fakeAnswerer returns a canned result or error for every question.
type fakeAnswerer struct {
	result *orchestrator.QueryResult
	err    error
}

func (f *fakeAnswerer) Answer(ctx context.Context, question, model string) (*orchestrator.QueryResult, error) {
	return f.result, f.err
}

// newTestServer builds a Server around the fake without starting a listener.
func newTestServer(t *testing.T, ans answerer, history store.HistoryStore) *Server {
	t.Helper()
	s, err := New(ans, history, &Config{})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

func TestHandleQuery_ReturnsAnswerAndSources(t *testing.T) {
	t.Parallel()

	ans := &fakeAnswerer{result: &orchestrator.QueryResult{
		Answer: "the answer",
		Sources: []prompt.Source{
			{Source: "doc.pdf", Content: "context passage"},
		},
	}}
	s := newTestServer(t, ans, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question":"what is it?"}`))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res orchestrator.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Answer != "the answer" {
		t.Errorf("unexpected answer %q", res.Answer)
	}
	if len(res.Sources) != 1 || res.Sources[0].Source != "doc.pdf" {
		t.Errorf("unexpected sources %+v", res.Sources)
	}
}

func TestHandleQuery_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{result: &orchestrator.QueryResult{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"model":"gemini-1.5-flash"}`))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty question, got %d", w.Code)
	}
}

func TestHandleQuery_MalformedBodyRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{result: &orchestrator.QueryResult{}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question": `))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", w.Code)
	}
}

// TestHandleQuery_MissingCredentialIs500 verifies a deployment fault maps to
// a 500 whose body names the missing env var, not the key value.
func TestHandleQuery_MissingCredentialIs500(t *testing.T) {
	t.Parallel()

	ans := &fakeAnswerer{err: &registry.CredentialError{Provider: "gemini", EnvVar: "GEMINI_API_KEY"}}
	s := newTestServer(t, ans, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "GEMINI_API_KEY") {
		t.Errorf("error body must name the missing env var, got %s", w.Body.String())
	}
}

// TestHandleQuery_RetrievalFailureIs502 verifies an unreachable retrieval
// backend maps to 502, keeping 500 for deployment faults.
func TestHandleQuery_RetrievalFailureIs502(t *testing.T) {
	t.Parallel()

	ans := &fakeAnswerer{err: &orchestrator.RetrievalError{Err: errors.New("qdrant unreachable")}}
	s := newTestServer(t, ans, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 for retrieval failure, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "retrieval backend unavailable") {
		t.Errorf("unexpected error body %s", w.Body.String())
	}
}

func TestHandleQuery_GenericErrorIs500(t *testing.T) {
	t.Parallel()

	ans := &fakeAnswerer{err: errors.New("registry misconfigured")}
	s := newTestServer(t, ans, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// TestHandleQuery_EmptySourcesEncodeAsList verifies the response carries an
// empty JSON list, never null, when retrieval found nothing.
func TestHandleQuery_EmptySourcesEncodeAsList(t *testing.T) {
	t.Parallel()

	ans := &fakeAnswerer{result: &orchestrator.QueryResult{
		Answer:  "from model knowledge",
		Sources: []prompt.Source{},
	}}
	s := newTestServer(t, ans, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sources":[]`) {
		t.Errorf("sources must encode as an empty list, got %s", w.Body.String())
	}
}

// TestHandleQuery_RecordsHistory verifies every answered query lands in the
// history store with its model and answer.
func TestHandleQuery_RecordsHistory(t *testing.T) {
	t.Parallel()

	hist, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })

	ans := &fakeAnswerer{result: &orchestrator.QueryResult{Answer: "recorded answer"}}
	s := newTestServer(t, ans, hist)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question":"the question","model":"deepseek-chat"}`))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	entries, err := hist.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 history entry, got %d", len(entries))
	}
	if entries[0].Question != "the question" || entries[0].Answer != "recorded answer" {
		t.Errorf("unexpected history entry %+v", entries[0])
	}
}

func TestHandleHistory_ReturnsEntriesNewestFirst(t *testing.T) {
	t.Parallel()

	hist, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })
	for _, q := range []string{"first", "second"} {
		if err := hist.Append(context.Background(), q, "m", "a"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	s := newTestServer(t, &fakeAnswerer{result: &orchestrator.QueryResult{}}, hist)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp historyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(resp.Entries))
	}
	if resp.Entries[0].Question != "second" {
		t.Errorf("entries must be newest-first, got %+v", resp.Entries)
	}
}

func TestHandleHistory_InvalidLimitRejected(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeAnswerer{result: &orchestrator.QueryResult{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=zero", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric limit, got %d", w.Code)
	}
}

// TestServer_QueryRequiresAPIKeyWhenConfigured verifies the protected route
// set: /api/v1/* requires the key while /api/health stays open.
func TestServer_QueryRequiresAPIKeyWhenConfigured(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeAnswerer{result: &orchestrator.QueryResult{}}, nil, &Config{APIKey: "secret"})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	t.Cleanup(s.stopRL)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question":"q"}`))
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query without key: expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health must stay open, got %d", w.Code)
	}
}
