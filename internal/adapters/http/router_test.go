package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/prashnly-client/internal/core/domain"
)

type wrapperFake struct {
	wrapped int
}

func (f *wrapperFake) Middleware(_ string, next http.Handler) http.Handler {
	f.wrapped++
	return next
}

func TestHealthzReturnsOKWithRequestID(t *testing.T) {
	handler := NewRouter("prashnly", nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) != "req-1" {
		t.Fatalf("expected request id to be echoed, got %q", res.Header().Get(requestIDHeader))
	}
}

func TestRequestIDIsGeneratedWhenMissing(t *testing.T) {
	handler := NewRouter("prashnly", nil, nil).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestReadyzReportsFailingCheck(t *testing.T) {
	handler := NewRouter("prashnly", nil, nil,
		ReadinessCheck{Name: "session_store", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "realtime", Check: func(context.Context) error {
			return domain.WrapError(domain.ErrTemporary, "ping", errors.New("no servers"))
		}},
	).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "unavailable" || body.Checks["session_store"] != "ok" || body.Checks["realtime"] == "ok" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestReadyzOKAndMetricsMounted(t *testing.T) {
	wrapper := &wrapperFake{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	handler := NewRouter("prashnly", metrics, wrapper,
		ReadinessCheck{Name: "session_store", Check: func(context.Context) error { return nil }},
	).Handler()

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Body.String() != "# metrics" {
		t.Fatalf("metrics handler not mounted, got %q", res.Body.String())
	}
	if wrapper.wrapped != 1 {
		t.Fatalf("expected metrics middleware to wrap the mux once, got %d", wrapper.wrapped)
	}
}

func TestHealthzRejectsPost(t *testing.T) {
	handler := NewRouter("prashnly", nil, nil).Handler()
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{err: nil, want: http.StatusOK},
		{err: domain.WrapError(domain.ErrUnauthorized, "op", errors.New("x")), want: http.StatusBadGateway},
		{err: domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), want: http.StatusInternalServerError},
		{err: domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), want: http.StatusServiceUnavailable},
		{err: errors.New("connection refused"), want: http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
