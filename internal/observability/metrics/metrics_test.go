package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *ClientMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	return rec.Body.String()
}

func expectLine(t *testing.T, body, line string) {
	t.Helper()
	if !strings.Contains(body, line+"\n") {
		t.Fatalf("metrics output misses %q:\n%s", line, body)
	}
}

func TestClientMetricsRecordsViewOutcomes(t *testing.T) {
	m := NewClientMetrics("prashnly")
	m.RecordRevert("toggle_active")
	m.RecordRevert("toggle_active")
	m.RecordUploadOutcome("completed")
	m.RecordUploadProgress(60)
	m.ObserveAPICall("list_documents", "ok", 20*time.Millisecond)
	m.BreakerStateChanged("ask", "closed", "open")

	body := scrape(t, m)
	expectLine(t, body, `prashnly_view_optimistic_reverts_total{operation="toggle_active",service="prashnly"} 2`)
	expectLine(t, body, `prashnly_upload_outcomes_total{outcome="completed",service="prashnly"} 1`)
	expectLine(t, body, `prashnly_api_calls_total{operation="list_documents",service="prashnly",status="ok"} 1`)
	expectLine(t, body, `prashnly_api_circuit_breaker_state{operation="ask",service="prashnly"} 2`)
	expectLine(t, body, `prashnly_upload_progress_percent_count{service="prashnly"} 1`)
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewClientMetrics("prashnly")
	handler := m.HTTP().Middleware("prashnly", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/path", nil))

	body := scrape(t, m)
	expectLine(t, body, `prashnly_ops_http_requests_total{code="418",method="get",path="/healthz",service="prashnly"} 1`)
	expectLine(t, body, `prashnly_ops_http_requests_total{code="418",method="get",path="other",service="prashnly"} 1`)
}
