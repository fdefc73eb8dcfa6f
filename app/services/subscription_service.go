package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/app/repositories"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/metrics"
	"github.com/shashiranjanraj/orderdesk/pkg/validate"
)

// SubscriptionKeysInput mirrors PushSubscription.toJSON().keys.
type SubscriptionKeysInput struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth"   validate:"required"`
}

// SubscriptionInput is the browser's PushSubscription as JSON.
type SubscriptionInput struct {
	Endpoint string                `json:"endpoint" validate:"required,url,max=700"`
	Keys     SubscriptionKeysInput `json:"keys"`
}

// UnsubscribeInput is the body of DELETE /api/subscribe.
type UnsubscribeInput struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// SubscriptionService manages staff Web Push opt-ins.
type SubscriptionService struct {
	registry repositories.SubscriptionRegistry
}

func NewSubscriptionService(registry repositories.SubscriptionRegistry) *SubscriptionService {
	return &SubscriptionService{registry: registry}
}

// Subscribe stores in unless its endpoint is already registered. added
// reports whether a new subscription was stored.
func (s *SubscriptionService) Subscribe(ctx context.Context, in SubscriptionInput) (added bool, err error) {
	if err := validationError(validate.Struct(in)); err != nil {
		return false, err
	}

	added, err = s.registry.Add(ctx, models.Subscription{
		Endpoint: strings.TrimSpace(in.Endpoint),
		Keys:     models.SubscriptionKeys{P256dh: in.Keys.P256dh, Auth: in.Keys.Auth},
	})
	if err != nil {
		return false, fmt.Errorf("services: subscribe: %w", err)
	}
	if added {
		logger.WithCtx(ctx).Info("push subscription added", "endpoint", in.Endpoint)
	}
	return added, nil
}

// Unsubscribe removes the subscription for in.Endpoint.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, in UnsubscribeInput) error {
	if err := validationError(validate.Struct(in)); err != nil {
		return err
	}

	removed, err := s.registry.Remove(ctx, strings.TrimSpace(in.Endpoint))
	if err != nil {
		return fmt.Errorf("services: unsubscribe: %w", err)
	}
	if !removed {
		return ErrSubscriptionNotFound
	}
	logger.WithCtx(ctx).Info("push subscription removed", "endpoint", in.Endpoint)
	return nil
}

// Count returns the number of registered subscriptions and publishes it on
// the push subscriptions gauge.
func (s *SubscriptionService) Count(ctx context.Context) (int, error) {
	subs, err := s.registry.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("services: count subscriptions: %w", err)
	}
	metrics.PushSubscriptions.Set(float64(len(subs)))
	return len(subs), nil
}
