package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/waypoint-go/internal/core/domain"
)

// DefaultEventBuffer is the queue depth of an EventBus.
const DefaultEventBuffer = 256

// EventHandler receives events on the dispatcher goroutine.
type EventHandler func(domain.Event)

// EventBus delivers events to subscribers asynchronously.
// Publish never blocks; events are dropped (and logged) when the queue is full.
type EventBus struct {
	mu       sync.RWMutex
	handlers []EventHandler
	closed   bool

	queue  chan domain.Event
	done   chan struct{}
	logger *slog.Logger
}

// NewEventBus starts a bus with the given queue depth.
func NewEventBus(buffer int, logger *slog.Logger) *EventBus {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &EventBus{
		queue:  make(chan domain.Event, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for every future event.
func (b *EventBus) Subscribe(h EventHandler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Publish queues an event. A nil bus discards it.
func (b *EventBus) Publish(e domain.Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- e:
	default:
		b.logger.Warn("event queue full, dropping event", "type", e.Type, "session_id", e.SessionID)
	}
}

// Close stops accepting events and waits until queued events are delivered.
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	<-b.done
}

func (b *EventBus) dispatch() {
	defer close(b.done)
	for e := range b.queue {
		b.mu.RLock()
		handlers := append([]EventHandler(nil), b.handlers...)
		b.mu.RUnlock()
		for _, h := range handlers {
			b.deliver(h, e)
		}
	}
}

func (b *EventBus) deliver(h EventHandler, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "type", e.Type, "panic", r)
		}
	}()
	h(e)
}
