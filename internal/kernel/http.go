// Package kernel builds the HTTP handler: the global middleware stack plus
// whatever routes the caller registers.
package kernel

import (
	"net/http"

	"github.com/shashiranjanraj/orderdesk/pkg/metrics"
	"github.com/shashiranjanraj/orderdesk/pkg/middleware"
	"github.com/shashiranjanraj/orderdesk/pkg/reqid"
	"github.com/shashiranjanraj/orderdesk/pkg/router"
)

// HTTPKernel owns the router and its global middleware.
type HTTPKernel struct {
	router *router.Router
}

// NewHTTPKernel applies the global middleware, then calls every register
// function in order.
//
// Global middleware (outermost → innermost):
//  1. Prometheus metrics: outermost for accurate total latency
//  2. Recovery: catches panics before they kill the goroutine
//  3. Request ID: injected before anything logs
//  4. Logger: logs request_id from context
//  5. CORS
func NewHTTPKernel(cors middleware.CORSOptions, register ...func(*router.Router)) *HTTPKernel {
	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(cors))

	for _, fn := range register {
		fn(r)
	}
	return &HTTPKernel{router: r}
}

// Handler returns the root http.Handler.
func (k *HTTPKernel) Handler() http.Handler { return k.router.Handler() }

// Routes lists every mounted route.
func (k *HTTPKernel) Routes() []router.RouteInfo { return k.router.Routes() }
