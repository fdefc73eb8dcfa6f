// Package ctx gives handlers a single request context instead of the
// (http.ResponseWriter, *http.Request) pair.
//
//	func (c *OrderController) Show(cx *ctx.Context) {
//	    order, err := c.orders.GetOrder(cx.Context(), cx.Param("id"))
//	    ...
//	    cx.Success(order)
//	}
//
//	router.Get("/orders/{id}", "orders.show", ctx.Wrap(orders.Show))
package ctx

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/orderdesk/pkg/auth"
	"github.com/shashiranjanraj/orderdesk/pkg/bind"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/response"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context wraps one request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	status int
}

var pool = sync.Pool{
	New: func() any { return &Context{} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

// Param returns a chi URL parameter.
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// Context returns the request context.
func (c *Context) Context() context.Context { return c.R.Context() }

// Log returns the request-scoped logger.
func (c *Context) Log() *slog.Logger { return logger.WithCtx(c.R.Context()) }

// Claims returns the staff token claims, when the request carried one.
func (c *Context) Claims() (*auth.Claims, bool) {
	return auth.ClaimsFromCtx(c.R.Context())
}

// BindJSON decodes the body into dest. On a malformed or oversized body it
// writes a 400 and returns false. Validation is left to the service layer.
func (c *Context) BindJSON(dest any) bool {
	if err := bind.Decode(c.W, c.R, dest); err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// ─── Response helpers ─────────────────────────────────────────────────────────

func (c *Context) Success(data any) {
	c.status = http.StatusOK
	response.Success(c.W, data)
}

func (c *Context) Created(message string, data any) {
	c.status = http.StatusCreated
	response.Created(c.W, message, data)
}

func (c *Context) Message(code int, message string) {
	c.status = code
	response.Message(c.W, code, message)
}

func (c *Context) Error(code int, message string) {
	c.status = code
	response.Error(c.W, code, message)
}

// ValidationError sends a 400 with field-level errors.
func (c *Context) ValidationError(errs map[string]string) {
	c.status = http.StatusBadRequest
	response.ValidationError(c.W, errs)
}

func (c *Context) NotFound(message string) {
	c.status = http.StatusNotFound
	response.NotFound(c.W, message)
}

func (c *Context) Unauthorized(message string) {
	c.status = http.StatusUnauthorized
	response.Unauthorized(c.W, message)
}

// InternalError logs err against the request and sends a generic 500.
func (c *Context) InternalError(err error) {
	c.Log().Error("request failed", "error", err)
	c.status = http.StatusInternalServerError
	response.InternalError(c.W)
}

// WrittenStatus returns the status written through Context, or 0.
func (c *Context) WrittenStatus() int { return c.status }
