package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/orderdesk/app/services"
	"github.com/shashiranjanraj/orderdesk/pkg/ctx"
)

type SubscriptionController struct {
	subs *services.SubscriptionService
}

func NewSubscriptionController(subs *services.SubscriptionService) *SubscriptionController {
	return &SubscriptionController{subs: subs}
}

// Subscribe handles POST /api/subscribe. Re-sending a known endpoint is not
// an error.
func (sc *SubscriptionController) Subscribe(c *ctx.Context) {
	var in services.SubscriptionInput
	if !c.BindJSON(&in) {
		return
	}

	added, err := sc.subs.Subscribe(c.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}

	msg := "Subscription added"
	if !added {
		msg = "Already subscribed"
	}
	c.Created(msg, nil)
}

// Unsubscribe handles DELETE /api/subscribe.
func (sc *SubscriptionController) Unsubscribe(c *ctx.Context) {
	var in services.UnsubscribeInput
	if !c.BindJSON(&in) {
		return
	}

	if err := sc.subs.Unsubscribe(c.Context(), in); err != nil {
		fail(c, err)
		return
	}
	c.Message(http.StatusOK, "Subscription removed")
}
