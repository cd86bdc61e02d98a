package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// webhookPayload is the JSON body sent by [Webhook].
type webhookPayload struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// Webhook sends notifications as a JSON POST to an arbitrary HTTP endpoint.
//
// The body is {"message": "...", "sent_at": "..."}; custom headers can carry
// authentication. Create instances with [NewWebhook].
type Webhook struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// WebhookOption configures a [Webhook] sender during construction.
type WebhookOption func(*Webhook)

// WithWebhookName overrides the channel name used in delivery reports,
// useful when several webhook channels are configured. Defaults to
// "webhook".
func WithWebhookName(name string) WebhookOption {
	return func(w *Webhook) {
		w.name = name
	}
}

// WithWebhookHeaders adds custom HTTP headers to every POST.
func WithWebhookHeaders(headers map[string]string) WebhookOption {
	return func(w *Webhook) {
		if w.headers == nil {
			w.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			w.headers[k] = v
		}
	}
}

// NewWebhook creates a [Webhook] sender that POSTs to the given URL.
//
// Returns an error if the URL is empty or unparsable.
func NewWebhook(rawURL string, opts ...WebhookOption) (*Webhook, error) {
	if rawURL == "" {
		return nil, errors.New("webhook URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}

	w := &Webhook{
		name:   "webhook",
		url:    rawURL,
		client: newHTTPClient(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Name implements stakeout.Sender.
func (w *Webhook) Name() string {
	return w.name
}

// Send implements stakeout.Sender by POSTing the message as JSON.
func (w *Webhook) Send(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{
		Message: message,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return classifyResponse(resp)
}
