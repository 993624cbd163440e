package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestHandler_ShutdownOrder(t *testing.T) {
	h := NewHandler(time.Second)

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 1; i <= 3; i++ {
		i := i
		h.OnShutdown(func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Errorf("hooks called in order %v, want [3 2 1]", order)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Shutdown")
	}
}

func TestHandler_ShutdownJoinsErrors(t *testing.T) {
	h := NewHandler(time.Second)
	errA := errors.New("close storage")
	errB := errors.New("close server")
	h.OnShutdown(func(context.Context) error { return errA })
	h.OnShutdown(func(context.Context) error { return errB })

	err := h.Shutdown()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Shutdown() error = %v, want both hook errors", err)
	}
}

func TestHandler_HooksGetDeadline(t *testing.T) {
	h := NewHandler(50 * time.Millisecond)
	h.OnShutdown(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("hook context has no deadline")
		}
		return nil
	})
	h.Shutdown()
}

func TestHandler_RunEmergencyOnce(t *testing.T) {
	h := NewHandler(time.Second)

	var calls []string
	h.OnEmergency(func(reason string) { panic("first hook fails") })
	h.OnEmergency(func(reason string) { calls = append(calls, reason) })

	h.RunEmergency("panic")
	h.RunEmergency("SIGTERM")

	if len(calls) != 1 || calls[0] != "panic" {
		t.Errorf("emergency hooks ran with %v, want one call with reason panic", calls)
	}
}

func TestHandler_WaitContextCancelled(t *testing.T) {
	h := NewHandler(time.Second)
	emergency := false
	shutdown := false
	h.OnEmergency(func(string) { emergency = true })
	h.OnShutdown(func(context.Context) error { shutdown = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if emergency {
		t.Error("emergency hooks ran without a signal")
	}
	if !shutdown {
		t.Error("shutdown hooks did not run")
	}
}

func TestHandler_WaitSignal(t *testing.T) {
	h := NewHandler(time.Second)
	reasonCh := make(chan string, 1)
	h.OnEmergency(func(reason string) { reasonCh <- reason })

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(context.Background()) }()

	// Give Wait time to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after SIGTERM")
	}
	if reason := <-reasonCh; reason != syscall.SIGTERM.String() {
		t.Errorf("emergency reason = %q, want %q", reason, syscall.SIGTERM.String())
	}
}
