package controllers

import (
	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/app/services"
	"github.com/shashiranjanraj/orderdesk/pkg/ctx"
)

type OrderController struct {
	orders *services.OrderManager
}

func NewOrderController(orders *services.OrderManager) *OrderController {
	return &OrderController{orders: orders}
}

// Store handles POST /api/orders.
func (oc *OrderController) Store(c *ctx.Context) {
	var in services.OrderInput
	if !c.BindJSON(&in) {
		return
	}

	order, err := oc.orders.PlaceOrder(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.Created("Order placed", order)
}

// Index handles GET /api/orders.
func (oc *OrderController) Index(c *ctx.Context) {
	orders, err := oc.orders.ListOrders(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(orders)
}

// Show handles GET /api/orders/{id}.
func (oc *OrderController) Show(c *ctx.Context) {
	order, err := oc.orders.GetOrder(c.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

type statusInput struct {
	Status models.OrderStatus `json:"status"`
}

// UpdateStatus handles PUT /api/orders/{id}/status.
func (oc *OrderController) UpdateStatus(c *ctx.Context) {
	var in statusInput
	if !c.BindJSON(&in) {
		return
	}

	order, err := oc.orders.ChangeStatus(c.Context(), c.Param("id"), in.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(order)
}

// Stats handles GET /api/stats.
func (oc *OrderController) Stats(c *ctx.Context) {
	stats, err := oc.orders.Stats(c.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.Success(stats)
}
