// Package sse provides Server-Sent Events for staff dashboards that cannot
// hold a WebSocket open.
//
// A Stream wraps one response; a Broker fans events out to every open
// Stream.
//
//	broker := sse.NewBroker(15 * time.Second)
//	router.Get("/api/events", "events", broker.ServeHTTP)
//	broker.Publish("newOrder", order)
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/metrics"
)

// Stream represents an active SSE connection to one client.
type Stream struct {
	w       http.ResponseWriter
	r       *http.Request
	flusher http.Flusher
	closed  bool
}

// New sets the event-stream headers and flushes them. It returns nil (after
// writing a 500) if the ResponseWriter cannot flush.
func New(w http.ResponseWriter, r *http.Request) *Stream {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, r: r, flusher: flusher}
}

// Send writes a named event with a JSON-encoded data payload.
func (s *Stream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	return s.write(event, payload)
}

func (s *Stream) write(event string, payload []byte) error {
	if s == nil || s.IsClosed() {
		return context.Canceled
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		s.closed = true
		return fmt.Errorf("sse: write: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Comment writes an SSE comment line, used as a keepalive.
func (s *Stream) Comment(msg string) {
	if s == nil || s.IsClosed() {
		return
	}
	fmt.Fprintf(s.w, ": %s\n\n", msg)
	s.flusher.Flush()
}

// IsClosed reports whether the client has disconnected.
func (s *Stream) IsClosed() bool {
	if s == nil {
		return true
	}
	select {
	case <-s.r.Context().Done():
		s.closed = true
	default:
	}
	return s.closed
}

// ─── Broker ───────────────────────────────────────────────────────────────────

type message struct {
	event   string
	payload []byte
}

type subscriber struct {
	ch chan message
}

// Broker fans events out to every connected Stream. A subscriber whose
// buffer is full is disconnected rather than waited on.
type Broker struct {
	// OnConnect runs on the request goroutine before any broadcast is written.
	OnConnect func(ctx context.Context, s *Stream)

	keepAlive time.Duration
	buffer    int

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	stopped bool
}

// NewBroker creates a Broker that writes a keepalive comment every keepAlive
// (default 15s).
func NewBroker(keepAlive time.Duration) *Broker {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &Broker{
		keepAlive: keepAlive,
		buffer:    64,
		subs:      map[*subscriber]struct{}{},
	}
}

// ClientCount returns the number of open streams.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish queues event for every subscriber without blocking.
func (b *Broker) Publish(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal %s: %w", event, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs {
		select {
		case sub.ch <- message{event: event, payload: payload}:
		default:
			b.removeLocked(sub)
			metrics.RealtimeDropped.WithLabelValues("sse").Inc()
			logger.Warn("sse: dropping slow client", "event", event)
		}
	}
	return nil
}

// Close disconnects every stream and refuses new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	for sub := range b.subs {
		b.removeLocked(sub)
	}
}

func (b *Broker) subscribe() (*subscriber, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil, false
	}
	sub := &subscriber{ch: make(chan message, b.buffer)}
	b.subs[sub] = struct{}{}
	metrics.RealtimeClients.WithLabelValues("sse").Set(float64(len(b.subs)))
	return sub, true
}

func (b *Broker) unsubscribe(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broker) removeLocked(sub *subscriber) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	metrics.RealtimeClients.WithLabelValues("sse").Set(float64(len(b.subs)))
}

// ServeHTTP holds the stream open until the client leaves, the subscriber is
// dropped, or the broker is closed.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sub, ok := b.subscribe()
	if !ok {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer b.unsubscribe(sub)

	stream := New(w, r)
	if stream == nil {
		return
	}

	if b.OnConnect != nil {
		b.OnConnect(r.Context(), stream)
	}

	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := stream.write(msg.event, msg.payload); err != nil {
				return
			}
		case <-ticker.C:
			stream.Comment("keepalive")
		}
	}
}
