package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/orderdesk/app/services"
	"github.com/shashiranjanraj/orderdesk/config"
	"github.com/shashiranjanraj/orderdesk/internal/bootstrap"
	"github.com/shashiranjanraj/orderdesk/pkg/testkit"
)

type envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

type order struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `json:"total"`
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

const validOrder = `{
	"customer": {"name": "Asha", "phone": "9000000000", "address": "12 MG Road"},
	"items": [{"name": "Dosa", "price": 80, "qty": 2}, {"name": "Chai", "price": 20}],
	"paymentMethod": "upi"
}`

func testSettings(t *testing.T, mutate func(*config.Settings)) config.Settings {
	t.Helper()
	s := config.Current()
	s.OrderStore, s.SubscriptionStore, s.QueueDriver = "memory", "memory", "memory"
	s.LogMongoURI = ""
	s.VAPIDPublicKey, s.VAPIDPrivateKey = "", ""
	s.SlackWebhook = ""
	s.StaffAuthRequired = false
	s.DeliveryFee = 15
	if mutate != nil {
		mutate(&s)
	}
	return s
}

// startApp boots the app with s and serves it; the hub and queue run until
// the test ends.
func startApp(t *testing.T, s config.Settings) (*bootstrap.App, string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	app, err := bootstrap.New(ctx, s)
	require.NoError(t, err)

	go app.Hub.Run(ctx)
	go func() { _ = app.Queue.Start(ctx) }()

	srv := httptest.NewServer(app.Kernel.Handler())
	t.Cleanup(func() {
		app.Broker.Close()
		srv.Close()
		cancel()
		_ = app.Close()
	})
	return app, srv.URL
}

func call(t *testing.T, method, url, body string, header http.Header) (int, envelope) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

func orderInput(t *testing.T) services.OrderInput {
	t.Helper()
	var in services.OrderInput
	require.NoError(t, json.Unmarshal([]byte(validOrder), &in))
	return in
}

func placeOrder(t *testing.T, base string) order {
	t.Helper()
	code, env := call(t, http.MethodPost, base+"/api/orders", validOrder, nil)
	require.Equal(t, http.StatusCreated, code, env.Message)

	var o order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	return o
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	_, base := startApp(t, testSettings(t, nil))

	code, env := call(t, http.MethodGet, base+"/api/orders", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))

	o := placeOrder(t, base)
	assert.Regexp(t, regexp.MustCompile(`^ORD-`), o.ID)
	assert.Equal(t, "received", o.Status)
	assert.InDelta(t, 180.0, o.Subtotal, 0.001)
	assert.InDelta(t, 195.0, o.Total, 0.001)

	code, env = call(t, http.MethodGet, base+"/api/orders/"+o.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	var got order
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, o.ID, got.ID)

	code, env = call(t, http.MethodPut, base+"/api/orders/"+o.ID+"/status", `{"status":"preparing"}`, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "preparing", got.Status)

	code, _ = call(t, http.MethodPut, base+"/api/orders/"+o.ID+"/status", `{"status":"received"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, http.MethodPut, base+"/api/orders/"+o.ID+"/status", `{"status":"cooking"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid status", env.Message)

	code, _ = call(t, http.MethodGet, base+"/api/orders/ORD-missing", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = call(t, http.MethodGet, base+"/api/stats", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"totalOrders":1,"activeOrders":1}`, string(env.Data))
}

func TestPlaceOrderValidation(t *testing.T) {
	_, base := startApp(t, testSettings(t, nil))

	code, env := call(t, http.MethodPost, base+"/api/orders", `{"items":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Errors)

	code, _ = call(t, http.MethodPost, base+"/api/orders", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, http.MethodGet, base+"/api/orders", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestStaffLoginAndMe(t *testing.T) {
	s := testSettings(t, nil)
	_, base := startApp(t, s)

	code, env := call(t, http.MethodPost, base+"/api/staff/login", `{"staffId":"`+s.StaffSeedID+`","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid staff ID or password", env.Message)

	code, env = call(t, http.MethodPost, base+"/api/staff/login", `{"staffId":""}`, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid staff ID or password", env.Message)

	body := `{"staffId":"` + s.StaffSeedID + `","password":"` + s.StaffSeedPassword + `"}`
	code, env = call(t, http.MethodPost, base+"/api/staff/login", body, nil)
	require.Equal(t, http.StatusOK, code)

	var login struct {
		Token string `json:"token"`
		Staff struct {
			ID string `json:"id"`
		} `json:"staff"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)
	assert.NotContains(t, string(env.Data), "password")

	code, _ = call(t, http.MethodGet, base+"/api/staff/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = call(t, http.MethodGet, base+"/api/staff/me", "", http.Header{"Authorization": {"Bearer " + login.Token}})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), s.StaffSeedID)
}

func TestStaffRoutesRequireTokenWhenConfigured(t *testing.T) {
	_, base := startApp(t, testSettings(t, func(s *config.Settings) { s.StaffAuthRequired = true }))

	code, _ := call(t, http.MethodGet, base+"/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	// Placing an order stays public.
	placeOrder(t, base)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	_, base := startApp(t, testSettings(t, nil))

	sub := `{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"key","auth":"secret"}}`

	code, env := call(t, http.MethodPost, base+"/api/subscribe", sub, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Subscription added", env.Message)

	code, env = call(t, http.MethodPost, base+"/api/subscribe", sub, nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Already subscribed", env.Message)

	code, env = call(t, http.MethodPost, base+"/api/subscribe", `{"endpoint":"not a url"}`, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Errors)

	code, _ = call(t, http.MethodDelete, base+"/api/subscribe", `{"endpoint":"https://push.example.com/abc"}`, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, http.MethodDelete, base+"/api/subscribe", `{"endpoint":"https://push.example.com/abc"}`, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestWebSocketFanOut(t *testing.T) {
	app, base := startApp(t, testSettings(t, nil))
	existing := placeOrder(t, base)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	first := readFrame(t, conn)
	assert.Equal(t, "existingOrders", first.Event)
	assert.Contains(t, string(first.Data), existing.ID)

	require.Eventually(t, func() bool { return app.Hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	placed := placeOrder(t, base)
	f := readFrame(t, conn)
	assert.Equal(t, "newOrder", f.Event)
	assert.Contains(t, string(f.Data), placed.ID)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "updateOrderStatus",
		"data":  map[string]string{"orderId": placed.ID, "newStatus": "preparing"},
	}))
	f = readFrame(t, conn)
	assert.Equal(t, "orderUpdated", f.Event)
	var updated order
	require.NoError(t, json.Unmarshal(f.Data, &updated))
	assert.Equal(t, placed.ID, updated.ID)
	assert.Equal(t, "preparing", updated.Status)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "updateOrderStatus",
		"data":  map[string]string{"orderId": "ORD-missing", "newStatus": "preparing"},
	}))
	f = readFrame(t, conn)
	assert.Equal(t, "error", f.Event)
	assert.Contains(t, string(f.Data), "Order not found")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": "dance", "data": nil}))
	f = readFrame(t, conn)
	assert.Equal(t, "error", f.Event)
	assert.Contains(t, string(f.Data), "Unknown event")
}

func TestGraphQL(t *testing.T) {
	_, base := startApp(t, testSettings(t, nil))
	o := placeOrder(t, base)

	post := func(query string) map[string]interface{} {
		body, _ := json.Marshal(map[string]string{"query": query})
		res, err := http.Post(base+"/graphql", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)

		var out map[string]interface{}
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		return out
	}

	out := post(`{ orders { id status total customer { name } } stats { totalOrders activeOrders } }`)
	require.Nil(t, out["errors"])
	data := out["data"].(map[string]interface{})
	orders := data["orders"].([]interface{})
	require.Len(t, orders, 1)
	first := orders[0].(map[string]interface{})
	assert.Equal(t, o.ID, first["id"])
	assert.Equal(t, "received", first["status"])
	assert.Equal(t, "Asha", first["customer"].(map[string]interface{})["name"])
	assert.EqualValues(t, 1, data["stats"].(map[string]interface{})["totalOrders"])

	out = post(`mutation { updateOrderStatus(id: "` + o.ID + `", status: "cancelled") { id status } }`)
	require.Nil(t, out["errors"])
	updated := out["data"].(map[string]interface{})["updateOrderStatus"].(map[string]interface{})
	assert.Equal(t, "cancelled", updated["status"])

	out = post(`mutation { updateOrderStatus(id: "` + o.ID + `", status: "preparing") { id } }`)
	assert.NotNil(t, out["errors"])
}

func TestHealthAndMetrics(t *testing.T) {
	_, base := startApp(t, testSettings(t, nil))

	code, env := call(t, http.MethodGet, base+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))

	res, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "orderdesk_push_subscriptions")
	assert.Contains(t, string(body), "orderdesk_orders_active")
}

func TestFileOrderStoreSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	s := testSettings(t, func(s *config.Settings) {
		s.OrderStore = "file"
		s.StorageDisk = "local"
		s.StorageLocalRoot = root
		s.OrderFile = "orders.json"
	})

	app, err := bootstrap.New(context.Background(), s)
	require.NoError(t, err)
	placed, err := app.OrderManager.PlaceOrder(context.Background(), orderInput(t))
	require.NoError(t, err)
	require.NoError(t, app.Close())
	assert.FileExists(t, filepath.Join(root, "orders.json"))

	again, err := bootstrap.New(context.Background(), s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })

	got, err := again.OrderManager.GetOrder(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, placed.Total, got.Total)
}

func TestDatabaseStores(t *testing.T) {
	s := testSettings(t, func(s *config.Settings) {
		s.OrderStore = "database"
		s.SubscriptionStore = "database"
		s.DBDriver = "sqlite"
		s.DatabaseDSN = "file:bootstrap_db?mode=memory&cache=shared"
	})
	app, base := startApp(t, s)
	require.NotNil(t, app.DB)

	o := placeOrder(t, base)
	code, env := call(t, http.MethodGet, base+"/api/orders/"+o.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "Dosa")

	body := `{"staffId":"` + s.StaffSeedID + `","password":"` + s.StaffSeedPassword + `"}`
	code, _ = call(t, http.MethodPost, base+"/api/staff/login", body, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestUnknownBackendsAreRejected(t *testing.T) {
	_, err := bootstrap.New(context.Background(), testSettings(t, func(s *config.Settings) { s.OrderStore = "carrier-pigeon" }))
	assert.ErrorContains(t, err, "ORDER_STORE")

	_, err = bootstrap.New(context.Background(), testSettings(t, func(s *config.Settings) { s.SubscriptionStore = "ldap" }))
	assert.ErrorContains(t, err, "SUBSCRIPTION_STORE")

	_, err = bootstrap.New(context.Background(), testSettings(t, func(s *config.Settings) { s.QueueDriver = "kafka" }))
	assert.ErrorContains(t, err, "QUEUE_DRIVER")
}

func TestScenarios(t *testing.T) {
	mt := testkit.NewMockTransport()
	s := testSettings(t, func(s *config.Settings) {
		s.SlackWebhook = "https://hooks.slack.test/services/T000/B000/XXXX"
	})

	ctx, cancel := context.WithCancel(context.Background())
	app, err := bootstrap.New(ctx, s, bootstrap.WithHTTPClient(mt.Client()))
	require.NoError(t, err)
	go app.Hub.Run(ctx)
	go func() { _ = app.Queue.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = app.Close()
	})

	testkit.RunDir(t, app.Kernel.Handler(), "testdata", mt)

	calls := mt.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, string(calls[0].Body), "New Order: ORD-")
}
