// Package channel provides built-in notification senders for stakeout.
//
// Each sender implements the stakeout.Sender interface: Discord webhooks
// ([Discord]), generic JSON webhooks ([Webhook]), and SMTP email ([Email]).
// Senders classify their failures so the dispatcher retries only what
// retrying can fix: transport errors and 408/429/5xx responses are
// transient, any other non-2xx response is permanent.
package channel

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mfenwick/stakeout"
)

const defaultHTTPTimeout = 20 * time.Second

// newHTTPClient returns the client used by webhook-style senders.
// The dispatcher applies per-attempt timeouts via context, so the client
// itself carries only a safety-net timeout.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// classifyResponse converts a non-2xx response into a transient or permanent
// error. 408, 429, and 5xx are worth retrying; everything else (bad payload,
// bad credentials, missing resource) is not.
func classifyResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))

	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return err
	default:
		return stakeout.Permanent(err)
	}
}
