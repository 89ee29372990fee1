package stream

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/swan-solutions/knocki-homeassistant/pkg/knocki"
)

// Listener receives decoded events for the kind it was registered under.
type Listener interface {
	HandleEvent(ctx context.Context, event knocki.Event)
}

// ListenerFunc adapts a plain function to the Listener interface.
type ListenerFunc func(ctx context.Context, event knocki.Event)

// HandleEvent calls f.
func (f ListenerFunc) HandleEvent(ctx context.Context, event knocki.Event) {
	f(ctx, event)
}

// Async wraps a listener so each event is handled on its own goroutine,
// opting out of the receive loop's in-line backpressure. Delivery order
// across events is no longer guaranteed for the wrapped listener.
func Async(listener Listener) Listener {
	return asyncListener{inner: listener}
}

type asyncListener struct {
	inner Listener
}

func (a asyncListener) HandleEvent(ctx context.Context, event knocki.Event) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Default().Error("async listener panicked", "panic", r, "kind", event.Kind)
			}
		}()
		a.inner.HandleEvent(ctx, event)
	}()
}

// entry pairs a listener with the opaque handle that identifies it for
// removal.
type entry struct {
	listener Listener
	id       uuid.UUID
}

// registry maps event kinds to ordered listener lists. Registration and
// removal are safe to call while a dispatch is in progress; dispatch
// iterates over a snapshot so the per-kind list is never mutated
// mid-iteration.
type registry struct {
	logger    *slog.Logger
	listeners map[knocki.EventKind][]entry
	mu        sync.RWMutex
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{
		logger:    logger,
		listeners: make(map[knocki.EventKind][]entry),
	}
}

// add appends the listener to the list for kind and returns a closure
// that removes exactly that registration. The closure is idempotent.
func (r *registry) add(kind knocki.EventKind, listener Listener) func() {
	id := uuid.New()

	r.mu.Lock()
	r.listeners[kind] = append(r.listeners[kind], entry{listener: listener, id: id})
	r.mu.Unlock()

	return func() {
		r.remove(kind, id)
	}
}

func (r *registry) remove(kind knocki.EventKind, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.listeners[kind]
	for i, e := range entries {
		if e.id == id {
			r.listeners[kind] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// dispatch delivers the event to every listener registered for its kind,
// in registration order. A panicking listener is logged and does not
// prevent delivery to the listeners after it.
func (r *registry) dispatch(ctx context.Context, event knocki.Event) {
	r.mu.RLock()
	snapshot := slices.Clone(r.listeners[event.Kind])
	r.mu.RUnlock()

	for _, e := range snapshot {
		r.invoke(ctx, e.listener, event)
	}
}

func (r *registry) invoke(ctx context.Context, listener Listener, event knocki.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked", "panic", rec, "kind", event.Kind)
		}
	}()
	listener.HandleEvent(ctx, event)
}
