// Package ws provides the staff WebSocket hub built on gorilla/websocket.
//
// Every frame in both directions is a JSON envelope {"event": ..., "data": ...}.
//
//	hub := ws.NewHub()
//	hub.OnConnect = func(ctx context.Context, c *ws.Client) { c.Send("existingOrders", orders) }
//	hub.OnMessage = func(ctx context.Context, c *ws.Client, msg ws.Inbound) { ... }
//	go hub.Run(ctx)
//	router.Get("/ws", "ws", hub.ServeHTTP)
//
//	hub.Publish("newOrder", order)
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// ErrBufferFull is returned by Client.Send when the client is not keeping up.
var ErrBufferFull = errors.New("ws: client send buffer full")

// ErrClientClosed is returned by Client.Send after the client disconnected.
var ErrClientClosed = errors.New("ws: client closed")

// ErrHubClosed is returned by Publish after Run has returned.
var ErrHubClosed = errors.New("ws: hub closed")

// Envelope is the wire format of every frame.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Inbound is a frame received from a client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ─── Client ───────────────────────────────────────────────────────────────────

// Client is one connected WebSocket.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	ctx  context.Context

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// Send queues a single frame for this client without blocking.
func (c *Client) Send(event string, data interface{}) error {
	msg, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("ws: marshal %s: %w", event, err)
	}
	return c.enqueue(msg)
}

func (c *Client) enqueue(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("ws: unexpected close", "error", err)
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
			_ = c.Send("error", map[string]string{"message": "Malformed message"})
			continue
		}
		if c.hub.OnMessage != nil {
			c.hub.OnMessage(c.ctx, c, msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

// Hub owns the set of connected clients. Only the Run goroutine touches the
// set; everything else talks to it through channels.
type Hub struct {
	// OnConnect runs once per client right after it is registered.
	OnConnect func(ctx context.Context, c *Client)
	// OnMessage runs on the client's read goroutine for every inbound frame.
	OnMessage func(ctx context.Context, c *Client, msg Inbound)

	upgrader   websocket.Upgrader
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
}

// NewHub creates a Hub that accepts any origin. Call Run before serving.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetCheckOrigin replaces the allow-all origin check.
func (h *Hub) SetCheckOrigin(fn func(r *http.Request) bool) {
	h.upgrader.CheckOrigin = fn
}

// Run is the hub event loop. It returns when ctx is cancelled, closing every
// client connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			logger.Debug("ws: client connected", "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				logger.Debug("ws: client disconnected", "total", len(h.clients))
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				if err := c.enqueue(msg); err != nil {
					h.drop(c)
					metrics.RealtimeDropped.WithLabelValues("ws").Inc()
					logger.Warn("ws: dropping slow client", "error", err)
				}
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	c.close()
	h.setCount()
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.RealtimeClients.WithLabelValues("ws").Set(float64(len(h.clients)))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int { return int(h.count.Load()) }

// Publish sends one frame to every connected client. It never waits on a
// client; it only waits for room in the hub's broadcast buffer.
func (h *Hub) Publish(event string, data interface{}) error {
	msg, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("ws: marshal %s: %w", event, err)
	}

	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithCtx(r.Context()).Warn("ws: upgrade failed", "error", err)
		return
	}

	// The request context ends when the handler returns, so the client gets
	// its own context carrying the request-scoped values.
	c := &Client{
		hub:  h,
		conn: conn,
		ctx:  context.WithoutCancel(r.Context()),
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	if h.OnConnect != nil {
		h.OnConnect(c.ctx, c)
	}
	go c.readPump()
}
