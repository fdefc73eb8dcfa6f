package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	xhttp "github.com/shashiranjanraj/orderdesk/pkg/http"
)

// SlackAttachment is a single Slack message attachment block.
type SlackAttachment struct {
	Color  string `json:"color,omitempty"` // "good" | "warning" | "danger"
	Title  string `json:"title,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
}

// SlackMessage is the body posted to an incoming webhook.
type SlackMessage struct {
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackNotifier posts to one Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier returns nil when webhookURL is empty so callers can treat
// Slack as optional.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// WithClient swaps the HTTP client used for webhook posts. Nil-safe.
func (s *SlackNotifier) WithClient(c *http.Client) *SlackNotifier {
	if s != nil && c != nil {
		s.client = c
	}
	return s
}

// Send posts msg to the webhook. A non-2xx answer is returned as an
// *http.StatusError from pkg/http.
func (s *SlackNotifier) Send(ctx context.Context, msg SlackMessage) error {
	if s == nil {
		return errors.New("notification: slack webhook URL not configured")
	}

	resp, err := xhttp.Post(s.webhookURL).
		WithContext(ctx).
		Client(s.client).
		Body(msg).
		Send()
	if err != nil {
		return fmt.Errorf("notification: slack post: %w", err)
	}
	if err := resp.Throw(); err != nil {
		return fmt.Errorf("notification: slack: %w", err)
	}
	return nil
}
