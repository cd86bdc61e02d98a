package watch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// defaultUserAgent is sent when the caller provides no User-Agent header.
// A browser-ish value keeps consumer-facing targets from rejecting polls.
const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// connection pooling limits to prevent resource exhaustion on long watches
const (
	defaultMaxIdleConns    = 10
	defaultMaxConnsPerHost = 2
	defaultIdleConnTimeout = 60 * time.Second
)

// Response holds the result of a fetch made by [Client].
//
// Response captures the body (limited to 1MB), the Content-Type header,
// status code, latency, and any error. A non-2xx status is reported as an
// error: the watcher treats it as a fetch failure, not as content.
type Response struct {
	// Body contains the HTTP response body, limited to 1MB.
	Body []byte

	// ContentType is the response Content-Type header. Empty if absent.
	ContentType string

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Err contains any error that occurred, including non-2xx statuses.
	// nil means a 2xx response was read successfully.
	Err error
}

// Client is an HTTP client wrapper for polling a single watched target.
//
// Timeouts are applied per-request via context rather than a global client
// timeout. Response bodies are limited to 1MB to prevent memory issues.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a polling [Client] with conservative connection pooling.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:    defaultMaxIdleConns,
				MaxConnsPerHost: defaultMaxConnsPerHost,
				IdleConnTimeout: defaultIdleConnTimeout,
			},
		},
	}
}

// Fetch performs an HTTP request and returns a structured [Response].
//
// If method is empty, GET is used. The timeout is applied via context
// cancellation. Fetch always returns a Response; errors are captured in the
// Err field rather than returned separately, which includes non-2xx status
// codes: the scheduler skips extraction for those cycles entirely.
func (c *Client) Fetch(ctx context.Context, method, url string, headers map[string]string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Err:     fmt.Errorf("failed to create request: %w", err),
		}
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Err:     fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
			StatusCode:  resp.StatusCode,
			Latency:     time.Since(start),
			Err:         fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
		Latency:     time.Since(start),
	}
}

// Close closes all idle connections in the client's connection pool.
//
// Safe to call multiple times. After Close, the client remains usable but
// new connections will be established as needed.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
