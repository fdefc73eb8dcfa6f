// Package controllers adapts HTTP, WebSocket, SSE and GraphQL requests to
// the services.
package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/orderdesk/app/services"
	"github.com/shashiranjanraj/orderdesk/pkg/ctx"
)

const invalidCredentialsMessage = "Invalid staff ID or password"

// fail maps a service error onto the response envelope. Anything it does not
// recognise is logged and reported as a bare 500.
func fail(c *ctx.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.ValidationError(verr.Fields)
	case errors.Is(err, services.ErrOrderNotFound):
		c.NotFound("Order not found")
	case errors.Is(err, services.ErrSubscriptionNotFound):
		c.NotFound("Subscription not found")
	case errors.Is(err, services.ErrInvalidStatus):
		c.Error(http.StatusBadRequest, "Invalid status")
	case errors.Is(err, services.ErrInvalidTransition):
		c.Error(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		c.Unauthorized(invalidCredentialsMessage)
	default:
		c.InternalError(err)
	}
}
