package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/orderdesk/app/models"
	"github.com/shashiranjanraj/orderdesk/app/repositories"
	xhttp "github.com/shashiranjanraj/orderdesk/pkg/http"
	"github.com/shashiranjanraj/orderdesk/pkg/logger"
	"github.com/shashiranjanraj/orderdesk/pkg/metrics"
	"github.com/shashiranjanraj/orderdesk/pkg/notification"
	"github.com/shashiranjanraj/orderdesk/pkg/queue"
)

// Real-time event names shared by the WebSocket hub and the SSE broker.
const (
	EventExistingOrders = "existingOrders"
	EventNewOrder       = "newOrder"
	EventOrderUpdated   = "orderUpdated"
	EventError          = "error"
)

// Queue job types owned by the notifier.
const (
	JobPushDeliver   = "push.deliver"
	JobSlackNewOrder = "slack.new_order"
)

// enqueueTimeout bounds each Dispatch made while a request is in flight.
const enqueueTimeout = 2 * time.Second

// Publisher broadcasts one event to every connected real-time client without
// waiting on any of them. *ws.Hub and *sse.Broker satisfy it.
type Publisher interface {
	Publish(event string, data interface{}) error
}

// Dispatcher enqueues background jobs. *queue.Manager satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobType string, payload interface{}) error
}

// JobRegistry binds job types to handlers. *queue.Manager satisfies it.
type JobRegistry interface {
	Register(jobType string, h queue.Handler)
}

// PushJob is the payload of one push.deliver job: one message for one
// subscription.
type PushJob struct {
	Endpoint string               `json:"endpoint"`
	P256dh   string               `json:"p256dh"`
	Auth     string               `json:"auth"`
	Message  notification.Message `json:"message"`
}

// SlackJob is the payload of a slack.new_order job.
type SlackJob struct {
	OrderID string  `json:"orderId"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Total   float64 `json:"total"`
}

// NotifierOptions configures a Notifier. Pusher and Slack are optional.
type NotifierOptions struct {
	Publishers    []Publisher
	Jobs          Dispatcher
	Subscriptions repositories.SubscriptionRegistry
	Pusher        notification.Pusher
	Slack         *notification.SlackNotifier
	NotifyURL     string
}

// Notifier fans order events out to real-time clients, push subscribers and
// Slack. Push and Slack deliveries go through the job queue, one job per
// recipient, so a failing recipient never affects the others.
type Notifier struct {
	opts NotifierOptions
}

// NewNotifier builds a Notifier. Call RegisterJobs before the queue starts.
func NewNotifier(opts NotifierOptions) *Notifier {
	return &Notifier{opts: opts}
}

// RegisterJobs binds the notifier's job handlers.
func (n *Notifier) RegisterJobs(r JobRegistry) {
	r.Register(JobPushDeliver, n.deliverPush)
	r.Register(JobSlackNewOrder, n.deliverSlack)
}

// NewOrderMessage renders the push payload for a freshly placed order.
func NewOrderMessage(o models.Order, url string) notification.Message {
	return notification.Message{
		Title: "New Order: " + o.ID,
		Body: fmt.Sprintf("Customer: %s, Items: %d, Address: %s, Phone: %s",
			o.Customer.Name, len(o.Items), o.Customer.Address, o.Customer.Phone),
		URL: url,
	}
}

// BroadcastNewOrder publishes newOrder to every real-time client, then
// enqueues one push job per subscription and a Slack job when configured.
func (n *Notifier) BroadcastNewOrder(ctx context.Context, order models.Order) {
	log := logger.WithCtx(ctx).With("order_id", order.ID)
	n.publish(ctx, EventNewOrder, order)

	if n.opts.Jobs == nil {
		return
	}
	msg := NewOrderMessage(order, n.opts.NotifyURL)

	if n.opts.Pusher != nil && n.opts.Subscriptions != nil {
		subs, err := n.opts.Subscriptions.All(ctx)
		if err != nil {
			log.Error("notifier: list subscriptions failed", "error", err)
		}
		for _, sub := range subs {
			job := PushJob{Endpoint: sub.Endpoint, P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth, Message: msg}
			if err := n.enqueue(ctx, JobPushDeliver, job); err != nil {
				log.Error("notifier: enqueue push failed", "endpoint", sub.Endpoint, "error", err)
			}
		}
	}

	if n.opts.Slack != nil {
		job := SlackJob{OrderID: order.ID, Title: msg.Title, Body: msg.Body, Total: order.Total}
		if err := n.enqueue(ctx, JobSlackNewOrder, job); err != nil {
			log.Error("notifier: enqueue slack failed", "error", err)
		}
	}
}

func (n *Notifier) enqueue(ctx context.Context, jobType string, payload interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	return n.opts.Jobs.Dispatch(ctx, jobType, payload)
}

// BroadcastStatusUpdate publishes orderUpdated to every real-time client.
func (n *Notifier) BroadcastStatusUpdate(ctx context.Context, order models.Order) {
	n.publish(ctx, EventOrderUpdated, order)
}

func (n *Notifier) publish(ctx context.Context, event string, data interface{}) {
	for _, p := range n.opts.Publishers {
		if err := p.Publish(event, data); err != nil {
			logger.WithCtx(ctx).Warn("notifier: publish failed", "event", event, "error", err)
		}
	}
}

func (n *Notifier) deliverPush(ctx context.Context, raw json.RawMessage) error {
	var job PushJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return queue.Permanent(fmt.Errorf("decode push job: %w", err))
	}
	if n.opts.Pusher == nil {
		return queue.Permanent(errors.New("web push is not configured"))
	}

	payload, err := json.Marshal(job.Message)
	if err != nil {
		return queue.Permanent(fmt.Errorf("encode push message: %w", err))
	}

	target := notification.Target{Endpoint: job.Endpoint, P256dh: job.P256dh, Auth: job.Auth}
	err = n.opts.Pusher.Push(ctx, target, payload)
	switch {
	case err == nil:
		metrics.PushDeliveries.WithLabelValues("sent").Inc()
		return nil

	case errors.Is(err, notification.ErrSubscriptionGone):
		metrics.PushDeliveries.WithLabelValues("gone").Inc()
		logger.WithCtx(ctx).Info("notifier: pruning expired subscription", "endpoint", job.Endpoint)
		if n.opts.Subscriptions != nil {
			if _, rmErr := n.opts.Subscriptions.Remove(ctx, job.Endpoint); rmErr != nil {
				return fmt.Errorf("prune subscription: %w", rmErr)
			}
		}
		return nil

	default:
		metrics.PushDeliveries.WithLabelValues("error").Inc()
		logger.WithCtx(ctx).Warn("notifier: push failed", "endpoint", job.Endpoint, "error", err)
		return err
	}
}

func (n *Notifier) deliverSlack(ctx context.Context, raw json.RawMessage) error {
	var job SlackJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return queue.Permanent(fmt.Errorf("decode slack job: %w", err))
	}
	if n.opts.Slack == nil {
		return queue.Permanent(errors.New("slack webhook is not configured"))
	}

	err := n.opts.Slack.Send(ctx, notification.SlackMessage{
		Text: job.Title,
		Attachments: []notification.SlackAttachment{{
			Color:  "good",
			Title:  job.OrderID,
			Text:   job.Body,
			Footer: fmt.Sprintf("Total %.2f", job.Total),
		}},
	})
	var status *xhttp.StatusError
	if errors.As(err, &status) && status.ClientError() {
		// A rejected webhook stays rejected.
		return queue.Permanent(err)
	}
	return err
}
