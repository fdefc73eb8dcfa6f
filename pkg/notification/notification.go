// Package notification delivers out-of-band alerts to staff: Web Push to
// subscribed browsers and an optional Slack incoming webhook.
//
//	pusher, err := notification.NewWebPusher(notification.WebPushOptions{...})
//	err = pusher.Push(ctx, target, payload)
//	if errors.Is(err, notification.ErrSubscriptionGone) {
//	    // prune the subscription
//	}
package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionGone is returned when the push service reports that the
// subscription no longer exists (HTTP 404 or 410). Retrying is pointless.
var ErrSubscriptionGone = errors.New("notification: push subscription gone")

// Message is the JSON payload the staff service worker renders.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Target identifies one browser push subscription.
type Target struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Pusher delivers one encrypted payload to one Target.
type Pusher interface {
	Push(ctx context.Context, target Target, payload []byte) error
}

// WebPushOptions configures a WebPusher.
type WebPushOptions struct {
	PublicKey  string
	PrivateKey string
	Subject    string // "mailto:..." or an https URL
	TTL        int    // seconds the push service may hold the message
	HTTPClient *http.Client
}

// WebPusher sends RFC 8030 Web Push messages signed with VAPID.
type WebPusher struct {
	opts WebPushOptions
}

// NewWebPusher validates that both VAPID keys are present.
func NewWebPusher(opts WebPushOptions) (*WebPusher, error) {
	if opts.PublicKey == "" || opts.PrivateKey == "" {
		return nil, errors.New("notification: VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required")
	}
	if opts.TTL <= 0 {
		opts.TTL = 60
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebPusher{opts: opts}, nil
}

// PublicKey is handed to staff browsers so they can subscribe.
func (p *WebPusher) PublicKey() string { return p.opts.PublicKey }

// Push encrypts payload for target and posts it to the push service.
func (p *WebPusher) Push(ctx context.Context, target Target, payload []byte) error {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: target.Endpoint,
		Keys: webpush.Keys{
			Auth:   target.Auth,
			P256dh: target.P256dh,
		},
	}, &webpush.Options{
		HTTPClient: p.opts.HTTPClient,
		// the library adds the mailto: scheme itself
		Subscriber:      strings.TrimPrefix(p.opts.Subject, "mailto:"),
		VAPIDPublicKey:  p.opts.PublicKey,
		VAPIDPrivateKey: p.opts.PrivateKey,
		TTL:             p.opts.TTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("notification: push send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w (HTTP %d)", ErrSubscriptionGone, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification: push service returned HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// GenerateVAPIDKeys returns a new base64url-encoded VAPID key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("notification: generate VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}
