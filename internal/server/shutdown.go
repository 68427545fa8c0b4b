package server

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Hook priorities. Lower runs first.
const (
	PriorityHTTP    = 10
	PriorityWorker  = 20
	PriorityTracing = 80
	PriorityStore   = 90
)

// Hook is one step of the shutdown sequence.
type Hook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// Shutdown runs registered hooks in priority order once a signal arrives or
// Trigger is called.
type Shutdown struct {
	mu      sync.Mutex
	hooks   []Hook
	timeout time.Duration
	signals []os.Signal
	logger  *zap.Logger

	trigger     chan struct{}
	done        chan struct{}
	started     bool
	triggerOnce sync.Once
}

// NewShutdown returns a Shutdown that waits for SIGTERM or SIGINT and gives
// hooks timeout to finish. A zero timeout means 30s.
func NewShutdown(timeout time.Duration, logger *zap.Logger) *Shutdown {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Shutdown{
		timeout: timeout,
		signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
		logger:  logger,
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Register adds a hook. Hooks with equal priority run in registration order.
func (s *Shutdown) Register(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
	sort.SliceStable(s.hooks, func(i, j int) bool {
		return s.hooks[i].Priority < s.hooks[j].Priority
	})
}

// Start begins waiting for a signal or Trigger. Calling it twice is a no-op.
func (s *Shutdown) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		case <-s.trigger:
			s.logger.Info("shutdown triggered")
		}
		signal.Stop(sigCh)
		s.run()
	}()
}

// Trigger starts the shutdown sequence without a signal.
func (s *Shutdown) Trigger() {
	s.triggerOnce.Do(func() { close(s.trigger) })
}

// Triggered is closed when the sequence begins.
func (s *Shutdown) Triggered() <-chan struct{} { return s.trigger }

// Done is closed when every hook has returned.
func (s *Shutdown) Done() <-chan struct{} { return s.done }

// Wait blocks until the sequence completes or timeout elapses.
func (s *Shutdown) Wait(timeout time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (s *Shutdown) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	for _, h := range hooks {
		if err := h.Fn(ctx); err != nil {
			s.logger.Warn("shutdown hook failed", zap.String("hook", h.Name), zap.Error(err))
			continue
		}
		s.logger.Debug("shutdown hook done", zap.String("hook", h.Name))
	}
	close(s.done)
}

// WorkerHook stops a Temporal worker.
func WorkerHook(stop func()) Hook {
	return Hook{Name: "temporal-worker", Priority: PriorityWorker, Fn: func(context.Context) error {
		stop()
		return nil
	}}
}

// StoreHook closes the vector store.
func StoreHook(closeFn func() error) Hook {
	return Hook{Name: "vector-store", Priority: PriorityStore, Fn: func(context.Context) error {
		return closeFn()
	}}
}

// TracingHook flushes and stops the tracer provider.
func TracingHook(shutdown func(ctx context.Context) error) Hook {
	return Hook{Name: "tracing", Priority: PriorityTracing, Fn: shutdown}
}
