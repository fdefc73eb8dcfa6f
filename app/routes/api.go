// Package routes mounts every endpoint on the router.
package routes

import (
	"net/http"

	"github.com/shashiranjanraj/orderdesk/app/controllers"
	"github.com/shashiranjanraj/orderdesk/pkg/ctx"
	"github.com/shashiranjanraj/orderdesk/pkg/metrics"
	"github.com/shashiranjanraj/orderdesk/pkg/middleware"
	"github.com/shashiranjanraj/orderdesk/pkg/response"
	"github.com/shashiranjanraj/orderdesk/pkg/router"
)

// Controllers groups the handlers the routes point at.
type Controllers struct {
	Orders        *controllers.OrderController
	Staff         *controllers.StaffController
	Subscriptions *controllers.SubscriptionController
	Realtime      *controllers.RealtimeController
	GraphQL       *controllers.GraphQLController
}

// Options tunes route-level middleware.
type Options struct {
	// StaffAuthRequired rejects staff routes without a valid token. When
	// false a token is optional, but a bad one is still rejected.
	StaffAuthRequired bool
	// OrderLimiter throttles order placement per client IP. Nil disables it.
	OrderLimiter *middleware.Limiter
}

// RegisterAPI mounts the public, staff, real-time and operational routes.
func RegisterAPI(r *router.Router, c Controllers, opts Options) {
	staffAuth := middleware.StaffAuth(opts.StaffAuthRequired)

	r.Get("/healthz", "health", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", "metrics", metrics.Handler())

	api := r.Group("/api")

	// Public
	var placeOrder []router.Middleware
	if opts.OrderLimiter != nil {
		placeOrder = append(placeOrder, opts.OrderLimiter.Middleware)
	}
	api.Post("/orders", "orders.store", ctx.Wrap(c.Orders.Store), placeOrder...)
	api.Post("/staff/login", "staff.login", ctx.Wrap(c.Staff.Login))

	// Staff
	staff := api.Group("", staffAuth)
	staff.Get("/orders", "orders.index", ctx.Wrap(c.Orders.Index))
	staff.Get("/orders/{id}", "orders.show", ctx.Wrap(c.Orders.Show))
	staff.Put("/orders/{id}/status", "orders.status", ctx.Wrap(c.Orders.UpdateStatus))
	staff.Get("/stats", "orders.stats", ctx.Wrap(c.Orders.Stats))
	staff.Post("/subscribe", "subscriptions.store", ctx.Wrap(c.Subscriptions.Subscribe))
	staff.Delete("/subscribe", "subscriptions.destroy", ctx.Wrap(c.Subscriptions.Unsubscribe))
	staff.Get("/events", "realtime.events", c.Realtime.Events)
	api.Get("/staff/me", "staff.me", ctx.Wrap(c.Staff.Me), middleware.StaffAuth(true))

	r.Get("/ws", "realtime.ws", c.Realtime.WebSocket, staffAuth)
	if c.GraphQL != nil {
		r.Post("/graphql", "graphql", c.GraphQL.Handle, staffAuth)
	}
}
