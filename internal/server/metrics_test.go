package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kbqa-dev/kbqa-go/internal/orchestrator"
)

// TestMetrics_QueryOutcomeCounted verifies a successful query increments the
// ok outcome counter and appears on GET /metrics.
func TestMetrics_QueryOutcomeCounted(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := New(&fakeAnswerer{result: &orchestrator.QueryResult{Answer: "a"}}, nil, &Config{Registry: reg})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	t.Cleanup(s.stopRL)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query",
		strings.NewReader(`{"question":"q"}`))
	s.httpServer.Handler.ServeHTTP(httptest.NewRecorder(), req)

	mreq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, mreq)

	body := w.Body.String()
	if !strings.Contains(body, `kbqa_query_requests_total{outcome="ok"} 1`) {
		t.Errorf("metrics must count the successful query, got:\n%s", body)
	}
	if !strings.Contains(body, `kbqa_http_requests_total{code="200",handler="query",method="POST"} 1`) {
		t.Errorf("metrics must count the HTTP request, got:\n%s", body)
	}
}

// TestMetrics_HermeticRegistries verifies two servers can coexist without
// duplicate-registration panics because each owns its registry.
func TestMetrics_HermeticRegistries(t *testing.T) {
	t.Parallel()

	for range 2 {
		s, err := New(&fakeAnswerer{result: &orchestrator.QueryResult{}}, nil, &Config{})
		if err != nil {
			t.Fatalf("server.New: %v", err)
		}
		s.stopRL()
	}
}
