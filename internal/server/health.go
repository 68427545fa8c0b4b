// Package server exposes the probe and metrics endpoints of the worker
// process and coordinates its graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/llmfactory/internal/config"
	"github.com/efebarandurmaz/llmfactory/internal/llm"
)

// Status is the state reported for a component or the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the outcome of one registered probe.
type Check struct {
	Name    string            `json:"name"`
	Status  Status            `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Report is the body of every probe endpoint.
type Report struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Checker runs one probe.
type Checker func(ctx context.Context) Check

// Health serves /health, /ready, /live and, when configured, /metrics.
type Health struct {
	mu      sync.RWMutex
	checks  map[string]Checker
	version string
	ready   bool
	live    bool
	metrics http.Handler
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures Health.
type Option func(*Health)

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(h *Health) { h.version = v }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Health) { h.metrics = m }
}

// WithLogger sets the logger for request logging.
func WithLogger(l *zap.Logger) Option {
	return func(h *Health) { h.logger = l }
}

// NewHealth returns a Health that is live but not yet ready.
func NewHealth(opts ...Option) *Health {
	h := &Health{
		checks:  make(map[string]Checker),
		live:    true,
		logger:  zap.L(),
		timeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds or replaces a named probe.
func (h *Health) Register(name string, c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = c
}

func (h *Health) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

func (h *Health) SetLive(live bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = live
}

// Router returns the chi router for the probe endpoints.
func (h *Health) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	r.Get("/live", h.handleLive)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

// Run serves the router on addr until ctx is cancelled.
func (h *Health) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("health server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Evaluate runs every registered probe and folds the results.
func (h *Health) Evaluate(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]Checker, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	version := h.version
	h.mu.RUnlock()
	sort.Strings(names)

	rep := Report{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]Check, 0, len(names)),
	}
	for _, name := range names {
		c := checks[name](ctx)
		c.Name = name
		rep.Checks = append(rep.Checks, c)
		switch {
		case c.Status == StatusUnhealthy:
			rep.Status = StatusUnhealthy
		case c.Status == StatusDegraded && rep.Status == StatusHealthy:
			rep.Status = StatusDegraded
		}
	}
	return rep
}

func (h *Health) handleHealth(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	code := http.StatusOK
	if rep.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

func (h *Health) handleReady(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	ok := h.ready
	h.mu.RUnlock()
	probe(w, ok)
}

func (h *Health) handleLive(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	ok := h.live
	h.mu.RUnlock()
	probe(w, ok)
}

func probe(w http.ResponseWriter, ok bool) {
	rep := Report{Status: StatusHealthy, Timestamp: time.Now().UTC()}
	if !ok {
		rep.Status = StatusUnhealthy
		writeJSON(w, http.StatusServiceUnavailable, rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// PingChecker reports unhealthy when ping fails. Use it for the Temporal
// connection and the vector store.
func PingChecker(component string, ping func(ctx context.Context) error) Checker {
	return func(ctx context.Context) Check {
		if err := ping(ctx); err != nil {
			return Check{Status: StatusUnhealthy, Message: component + " unreachable: " + err.Error()}
		}
		return Check{Status: StatusHealthy, Message: component + " OK"}
	}
}

// ProviderChecker reports whether settings carry a variant for the chosen
// provider. A missing variant only degrades the process, since the other
// kind of client may still work.
func ProviderChecker(settings *config.Settings, kind llm.Kind, provider string) Checker {
	return func(context.Context) Check {
		details := map[string]string{"kind": string(kind), "provider": provider}
		var ok bool
		switch kind {
		case llm.KindEmbedding:
			_, ok = settings.Embedding(provider)
		default:
			_, ok = settings.Completion(provider)
		}
		if !ok {
			err := &llm.UnknownProviderError{Kind: kind, Provider: provider}
			return Check{Status: StatusDegraded, Message: err.Error(), Details: details}
		}
		return Check{Status: StatusHealthy, Message: "provider configured", Details: details}
	}
}
