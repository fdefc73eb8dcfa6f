package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/app/services"
	"github.com/shashiranjanraj/orderdesk/pkg/event"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/sse"
	"github.com/shashiranjanraj/orderdesk/pkg/ws"
)

// EventUpdateOrderStatus is the client → server socket event.
const EventUpdateOrderStatus = "updateOrderStatus"

// RealtimeController serves the staff WebSocket and SSE streams. Both send
// the current order list on connect; the socket also accepts status updates.
type RealtimeController struct {
	orders *services.OrderManager
	hub    *ws.Hub
	broker *sse.Broker
	bus    *event.Bus
}

// NewRealtimeController installs its connect and message hooks on hub and
// broker and its listeners on bus.
func NewRealtimeController(orders *services.OrderManager, hub *ws.Hub, broker *sse.Broker, bus *event.Bus) *RealtimeController {
	rc := &RealtimeController{orders: orders, hub: hub, broker: broker, bus: bus}

	hub.OnConnect = func(ctx context.Context, c *ws.Client) {
		if list, ok := rc.existingOrders(ctx); ok {
			_ = c.Send(services.EventExistingOrders, list)
		}
	}
	hub.OnMessage = rc.handleMessage
	broker.OnConnect = func(ctx context.Context, s *sse.Stream) {
		if list, ok := rc.existingOrders(ctx); ok {
			_ = s.Send(services.EventExistingOrders, list)
		}
	}
	bus.Listen(EventUpdateOrderStatus, rc.updateOrderStatus)
	return rc
}

// WebSocket handles GET /ws.
func (rc *RealtimeController) WebSocket(w http.ResponseWriter, r *http.Request) {
	rc.hub.ServeHTTP(w, r)
}

// Events handles GET /api/events.
func (rc *RealtimeController) Events(w http.ResponseWriter, r *http.Request) {
	rc.broker.ServeHTTP(w, r)
}

func (rc *RealtimeController) existingOrders(ctx context.Context) ([]models.Order, bool) {
	list, err := rc.orders.ListOrders(ctx)
	if err != nil {
		logger.WithCtx(ctx).Error("realtime: load existing orders failed", "error", err)
		return nil, false
	}
	return list, true
}

func (rc *RealtimeController) handleMessage(ctx context.Context, c *ws.Client, msg ws.Inbound) {
	err := rc.bus.Fire(ctx, msg.Event, msg.Data)
	if err == nil {
		return
	}
	_ = c.Send(services.EventError, map[string]string{"message": socketMessage(ctx, msg.Event, err)})
}

type statusUpdate struct {
	OrderID   string             `json:"orderId"`
	NewStatus models.OrderStatus `json:"newStatus"`
}

func (rc *RealtimeController) updateOrderStatus(ctx context.Context, raw json.RawMessage) error {
	var in statusUpdate
	if err := json.Unmarshal(raw, &in); err != nil || in.OrderID == "" {
		return &services.ValidationError{Fields: map[string]string{"orderId": "The orderId field is required."}}
	}
	// Success is announced to every client, this one included, as orderUpdated.
	_, err := rc.orders.ChangeStatus(ctx, in.OrderID, in.NewStatus)
	return err
}

// socketMessage is the text sent back in an error frame.
func socketMessage(ctx context.Context, eventName string, err error) string {
	var verr *services.ValidationError
	switch {
	case errors.Is(err, event.ErrNoListener):
		return "Unknown event: " + eventName
	case errors.As(err, &verr):
		return "Invalid payload"
	case errors.Is(err, services.ErrOrderNotFound):
		return "Order not found"
	case errors.Is(err, services.ErrInvalidStatus):
		return "Invalid status"
	case errors.Is(err, services.ErrInvalidTransition):
		return err.Error()
	default:
		logger.WithCtx(ctx).Error("realtime: event failed", "event", eventName, "error", err)
		return "Internal error"
	}
}
