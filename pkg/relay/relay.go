// Package relay fans session events out to dialog collaborators.
package relay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/vitrine/internal/logging"
	"github.com/aretw0/vitrine/pkg/domain"
)

// HandlerFunc receives a session event.
type HandlerFunc func(ctx context.Context, ev domain.SessionEvent)

// Relay implements ports.EventRelay. Handlers run synchronously, in
// subscription order, on the caller's goroutine.
type Relay struct {
	mu       sync.RWMutex
	handlers map[int]HandlerFunc
	order    []int
	next     int
	logger   *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger logs every relayed event at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// New creates an empty relay.
func New(opts ...Option) *Relay {
	r := &Relay{
		handlers: make(map[int]HandlerFunc),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers h and returns a function that removes it.
func (r *Relay) Subscribe(h HandlerFunc) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	r.handlers[id] = h
	r.order = append(r.order, id)

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Handle forwards ev to every subscriber.
func (r *Relay) Handle(ctx context.Context, ev domain.SessionEvent) {
	r.mu.RLock()
	handlers := make([]HandlerFunc, 0, len(r.order))
	for _, id := range r.order {
		handlers = append(handlers, r.handlers[id])
	}
	r.mu.RUnlock()

	r.logger.Debug("Relaying session event", "type", ev.Type, "handlers", len(handlers))
	for _, h := range handlers {
		h(ctx, ev)
	}
}

// Filter returns a handler that only passes events of the given types to h.
func Filter(h HandlerFunc, types ...domain.SessionEventType) HandlerFunc {
	return func(ctx context.Context, ev domain.SessionEvent) {
		for _, t := range types {
			if ev.Type == t {
				h(ctx, ev)
				return
			}
		}
	}
}
