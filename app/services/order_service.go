package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/app/repositories"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/metrics"
	"github.com/shashiranjanraj/orderdesk/pkg/validate"
)

const defaultPaymentMethod = "COD"

// CustomerInput is the customer block of a new order.
type CustomerInput struct {
	Name    string `json:"name"    validate:"required,max=255"`
	Phone   string `json:"phone"   validate:"required,max=64"`
	Address string `json:"address" validate:"required,max=1000"`
}

// ItemInput is one requested line. Qty 0 (or absent) means one.
type ItemInput struct {
	Name  string  `json:"name"  validate:"max=255"`
	Price float64 `json:"price" validate:"gte=0"`
	Qty   int     `json:"qty"   validate:"gte=0"`
}

// OrderInput is the body of POST /api/orders.
type OrderInput struct {
	Customer            CustomerInput `json:"customer"`
	Items               []ItemInput   `json:"items"               validate:"required,min=1"`
	SpecialInstructions string        `json:"specialInstructions" validate:"max=2000"`
	PaymentMethod       string        `json:"paymentMethod"       validate:"max=32"`
}

// FanOut is what the order manager tells about accepted orders and status
// changes. Implementations must not block on slow recipients.
type FanOut interface {
	BroadcastNewOrder(ctx context.Context, order models.Order)
	BroadcastStatusUpdate(ctx context.Context, order models.Order)
}

// OrderManager validates orders, computes totals, runs the status state
// machine and hands every change to the fan-out.
type OrderManager struct {
	store       repositories.OrderStore
	fanout      FanOut
	deliveryFee float64
}

// NewOrderManager wires a manager. fanout may be nil.
func NewOrderManager(store repositories.OrderStore, fanout FanOut, deliveryFee float64) *OrderManager {
	return &OrderManager{store: store, fanout: fanout, deliveryFee: deliveryFee}
}

// PlaceOrder validates in, prices it and persists a new received order.
// Invalid input yields a *ValidationError and nothing is stored.
func (m *OrderManager) PlaceOrder(ctx context.Context, in OrderInput) (models.Order, error) {
	if err := validationError(validate.Struct(in)); err != nil {
		return models.Order{}, err
	}

	draft := models.Order{
		Customer: models.Customer{
			Name:    strings.TrimSpace(in.Customer.Name),
			Phone:   strings.TrimSpace(in.Customer.Phone),
			Address: strings.TrimSpace(in.Customer.Address),
		},
		Items:               make([]models.OrderItem, 0, len(in.Items)),
		SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
		PaymentMethod:       strings.ToUpper(strings.TrimSpace(in.PaymentMethod)),
		DeliveryFee:         m.deliveryFee,
		Status:              models.StatusReceived,
	}
	if draft.PaymentMethod == "" {
		draft.PaymentMethod = defaultPaymentMethod
	}

	for _, it := range in.Items {
		item := models.OrderItem{Name: strings.TrimSpace(it.Name), Price: it.Price, Qty: it.Qty}
		if item.Qty == 0 {
			item.Qty = 1
		}
		draft.Items = append(draft.Items, item)
		draft.Subtotal += item.LineTotal()
	}
	draft.Total = draft.Subtotal + draft.DeliveryFee

	order, err := m.store.Create(ctx, draft)
	if err != nil {
		return models.Order{}, fmt.Errorf("services: place order: %w", err)
	}

	metrics.OrdersPlaced.Inc()
	logger.WithCtx(ctx).Info("order placed",
		"order_id", order.ID,
		"items", len(order.Items),
		"total", order.Total,
	)

	if m.fanout != nil {
		m.fanout.BroadcastNewOrder(ctx, order)
	}
	return order, nil
}

// ChangeStatus moves an order to status. The status must be known, the order
// must exist, and the move must be allowed from the order's current status,
// checked in that order.
func (m *OrderManager) ChangeStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error) {
	if !status.Valid() {
		return models.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	order, err := m.store.UpdateStatus(ctx, id, status, func(current models.Order) error {
		if !current.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, current.Status, status)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrInvalidTransition) {
			return models.Order{}, err
		}
		return models.Order{}, fmt.Errorf("services: change status: %w", err)
	}

	metrics.StatusChanges.WithLabelValues(string(status)).Inc()
	logger.WithCtx(ctx).Info("order status changed", "order_id", order.ID, "status", status)

	if m.fanout != nil {
		m.fanout.BroadcastStatusUpdate(ctx, order)
	}
	return order, nil
}

// ListOrders returns every order, oldest first. Never nil.
func (m *OrderManager) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := m.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("services: list orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// GetOrder returns one order or ErrOrderNotFound.
func (m *OrderManager) GetOrder(ctx context.Context, id string) (models.Order, error) {
	order, err := m.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return models.Order{}, err
		}
		return models.Order{}, fmt.Errorf("services: get order: %w", err)
	}
	return order, nil
}

// Stats counts all orders and those still in the kitchen. It also refreshes
// the active-orders gauge.
func (m *OrderManager) Stats(ctx context.Context) (models.OrderStats, error) {
	orders, err := m.store.All(ctx)
	if err != nil {
		return models.OrderStats{}, fmt.Errorf("services: stats: %w", err)
	}

	stats := models.OrderStats{TotalOrders: len(orders)}
	for _, o := range orders {
		if o.Status.Active() {
			stats.ActiveOrders++
		}
	}
	metrics.ActiveOrders.Set(float64(stats.ActiveOrders))
	return stats, nil
}
