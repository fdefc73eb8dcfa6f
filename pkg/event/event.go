// Package event routes named events with JSON payloads to listeners.
// The WebSocket hub uses it to dispatch client → server messages such as
// updateOrderStatus.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNoListener is returned by Fire when nothing listens for the event.
var ErrNoListener = errors.New("event: no listener")

// Handler receives an event payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Bus is a synchronous event dispatcher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: map[string][]Handler{}}
}

// Listen registers a handler for the given event name.
func (b *Bus) Listen(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Has reports whether any handler listens for event.
func (b *Bus) Has(event string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event]) > 0
}

// Fire calls every listener of event in registration order and joins their
// errors.
func (b *Bus) Fire(ctx context.Context, event string, payload json.RawMessage) error {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[event]))
	copy(hs, b.handlers[event])
	b.mu.RUnlock()

	if len(hs) == 0 {
		return fmt.Errorf("%w for %q", ErrNoListener, event)
	}

	var errs []error
	for _, h := range hs {
		if err := h(ctx, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
}
