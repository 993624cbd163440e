package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Signals that end the process. Each one runs the emergency hooks before
// the graceful shutdown hooks.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// Handler handles graceful shutdown.
type Handler struct {
	timeout time.Duration

	mu        sync.Mutex
	hooks     []func(context.Context) error
	emergency []func(reason string)

	emergencyOnce sync.Once
	done          chan struct{}
}

// NewHandler creates a new shutdown handler.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// OnEmergency registers a hook that runs when the process is being
// terminated by a signal or is crashing. Emergency hooks run at most once
// per process, in registration order.
func (h *Handler) OnEmergency(hook func(reason string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emergency = append(h.emergency, hook)
}

// RunEmergency runs the emergency hooks once. Later calls do nothing.
// A panicking hook does not stop the ones after it.
func (h *Handler) RunEmergency(reason string) {
	h.emergencyOnce.Do(func() {
		h.mu.Lock()
		hooks := make([]func(string), len(h.emergency))
		copy(hooks, h.emergency)
		h.mu.Unlock()

		for _, hook := range hooks {
			func() {
				defer func() { _ = recover() }()
				hook(reason)
			}()
		}
	})
}

// Wait blocks until a termination signal arrives or ctx is cancelled, then
// executes the shutdown hooks. A signal runs the emergency hooks first.
func (h *Handler) Wait(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, Signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.RunEmergency(sig.String())
	case <-ctx.Done():
	}
	return h.Shutdown()
}

// Shutdown executes the shutdown hooks within the handler's timeout.
func (h *Handler) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]func(context.Context) error, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	close(h.done)
	return errors.Join(errs...)
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
