package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ReadinessCheck reports whether one dependency of the running client is
// usable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type MetricsMiddleware interface {
	Middleware(service string, next http.Handler) http.Handler
}

// Router serves the ops endpoints of long-running modes: liveness, readiness
// and Prometheus metrics.
type Router struct {
	service        string
	metrics        http.Handler
	metricsWrapper MetricsMiddleware
	checks         []ReadinessCheck
	checkTimeout   time.Duration
}

func NewRouter(service string, metrics http.Handler, wrapper MetricsMiddleware, checks ...ReadinessCheck) *Router {
	return &Router{
		service:        service,
		metrics:        metrics,
		metricsWrapper: wrapper,
		checks:         checks,
		checkTimeout:   2 * time.Second,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/readyz", rt.readyz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}

	var handler http.Handler = mux
	if rt.metricsWrapper != nil {
		handler = rt.metricsWrapper.Middleware(rt.service, handler)
	}
	return withRequestID(withAccessLog(rt.service, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.checkTimeout)
	defer cancel()

	results := make(map[string]string, len(rt.checks))
	var failed error
	for _, check := range rt.checks {
		if err := check.Check(ctx); err != nil {
			results[check.Name] = err.Error()
			failed = errors.Join(failed, fmt.Errorf("%s: %w", check.Name, err))
			continue
		}
		results[check.Name] = "ok"
	}

	if failed != nil {
		slog.Warn("readiness_failed", "request_id", requestIDFromContext(r.Context()), "error", failed)
		writeJSON(w, mapErrorToHTTPStatus(failed), map[string]any{"status": "unavailable", "checks": results})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": results})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Serve runs the ops server until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ops_server_listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown: %w", err)
		}
		return nil
	}
}
