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

const (
	discordEmbedColor    = 0x00FF00
	discordMaxDescLength = 4096 // Discord's embed description limit
)

// discordEmbed is the embed object of a Discord webhook payload.
type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// discordPayload is the top-level Discord webhook payload.
type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Discord sends notifications to a Discord channel via an incoming webhook.
//
// Messages are delivered as a single embed with a title, the notification
// text as description, and a timestamp. Create instances with [NewDiscord].
type Discord struct {
	webhookURL string
	title      string
	username   string
	client     *http.Client
}

// DiscordOption configures a [Discord] sender during construction.
type DiscordOption func(*Discord)

// WithDiscordTitle overrides the embed title. Defaults to "Stakeout Alert".
func WithDiscordTitle(title string) DiscordOption {
	return func(d *Discord) {
		d.title = title
	}
}

// WithDiscordUsername overrides the webhook's display name for these
// messages.
func WithDiscordUsername(username string) DiscordOption {
	return func(d *Discord) {
		d.username = username
	}
}

// NewDiscord creates a [Discord] sender for the given webhook URL.
//
// Returns an error if the webhook URL is empty or unparsable; a bad URL is
// a configuration problem that should fail before the watch starts.
func NewDiscord(webhookURL string, opts ...DiscordOption) (*Discord, error) {
	if webhookURL == "" {
		return nil, errors.New("discord webhook URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(webhookURL); err != nil {
		return nil, fmt.Errorf("invalid discord webhook URL: %w", err)
	}

	d := &Discord{
		webhookURL: webhookURL,
		title:      "Stakeout Alert",
		client:     newHTTPClient(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Name implements stakeout.Sender.
func (d *Discord) Name() string {
	return "discord"
}

// Send implements stakeout.Sender by POSTing an embed payload to the
// webhook URL.
func (d *Discord) Send(ctx context.Context, message string) error {
	if len(message) > discordMaxDescLength {
		message = message[:discordMaxDescLength]
	}

	payload := discordPayload{
		Username: d.username,
		Embeds: []discordEmbed{{
			Title:       d.title,
			Description: message,
			Color:       discordEmbedColor,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Footer:      &discordFooter{Text: "stakeout"},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return classifyResponse(resp)
}
