package ws_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/pkg/ws"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startHub(t *testing.T, hub *ws.Hub) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestOnConnectAndPublish(t *testing.T) {
	hub := ws.NewHub()
	hub.OnConnect = func(_ context.Context, c *ws.Client) {
		_ = c.Send("existingOrders", []string{"ORD-1"})
	}
	url := startHub(t, hub)

	conn := dial(t, url)

	first := read(t, conn)
	assert.Equal(t, "existingOrders", first.Event)
	assert.JSONEq(t, `["ORD-1"]`, string(first.Data))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Publish("newOrder", map[string]string{"id": "ORD-2"}))
	next := read(t, conn)
	assert.Equal(t, "newOrder", next.Event)
	assert.JSONEq(t, `{"id":"ORD-2"}`, string(next.Data))
}

func TestInboundRouting(t *testing.T) {
	hub := ws.NewHub()
	hub.OnMessage = func(_ context.Context, c *ws.Client, msg ws.Inbound) {
		_ = c.Send("echo", map[string]string{"event": msg.Event, "data": string(msg.Data)})
	}
	url := startHub(t, hub)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "updateOrderStatus",
		"data":  map[string]string{"orderId": "ORD-1", "newStatus": "preparing"},
	}))

	got := read(t, conn)
	assert.Equal(t, "echo", got.Event)
	assert.Contains(t, string(got.Data), "updateOrderStatus")
}

func TestMalformedInbound(t *testing.T) {
	hub := ws.NewHub()
	url := startHub(t, hub)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	got := read(t, conn)
	assert.Equal(t, "error", got.Event)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := ws.NewHub()
	url := startHub(t, hub)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestPublishAfterShutdown(t *testing.T) {
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.ErrorIs(t, hub.Publish("newOrder", nil), ws.ErrHubClosed)
}
