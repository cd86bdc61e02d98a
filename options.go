package stakeout

import (
	"errors"
	"log/slog"
	"time"
)

// skConfig holds mutable state during Stakeout construction.
type skConfig struct {
	url             string
	method          string
	headers         map[string]string
	query           Query
	querySet        bool
	interval        time.Duration
	requestTimeout  time.Duration
	requestDelay    time.Duration
	senders         []Sender
	retry           RetryPolicy
	sendTimeout     time.Duration
	logger          *slog.Logger
	checkCallbacks  []func(CheckStatus)
	reportCallbacks []func(DeliveryReport)
	startupNotice   bool
}

// Option is a function that configures a [Stakeout] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*skConfig) error

// WithURL sets the resource to watch. Required.
//
// The URL must have an http:// or https:// scheme.
func WithURL(rawURL string) Option {
	return func(cfg *skConfig) error {
		cfg.url = rawURL
		return nil
	}
}

// WithQuery sets what to look for in the fetched resource. Required.
//
// See [NewQuery] for building queries.
func WithQuery(q Query) Option {
	return func(cfg *skConfig) error {
		cfg.query = q
		cfg.querySet = true
		return nil
	}
}

// WithMethod sets the HTTP method for fetches.
//
// Supported methods are GET (default), HEAD, and POST.
func WithMethod(method string) Option {
	return func(cfg *skConfig) error {
		switch method {
		case "GET", "HEAD", "POST":
			cfg.method = method
			return nil
		default:
			return errors.New("method must be GET, HEAD, or POST")
		}
	}
}

// WithHeaders adds custom HTTP headers to every fetch.
//
// Use this for targets that require authentication or content negotiation.
// Accepts variadic key-value pairs; the number of arguments must be even.
//
// Example:
//
//	stakeout.WithHeaders("Accept", "application/json")
func WithHeaders(keyValues ...string) Option {
	return func(cfg *skConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		if cfg.headers == nil {
			cfg.headers = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithInterval sets how often the target is checked.
//
// Defaults to 15 minutes. Must be at least 1 second.
func WithInterval(d time.Duration) Option {
	return func(cfg *skConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		cfg.interval = d
		return nil
	}
}

// WithRequestTimeout sets the hard timeout for each fetch.
//
// A fetch exceeding the timeout is a fetch failure for that cycle: the cycle
// is skipped and the next scheduled check retries naturally. Defaults to 30
// seconds.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *skConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithRequestDelay sets the minimum delay between consecutive outbound
// fetches, independent of the check interval.
//
// This bounds load on the target resource. Defaults to 1 second. Zero
// disables pacing.
func WithRequestDelay(d time.Duration) Option {
	return func(cfg *skConfig) error {
		if d < 0 {
			return errors.New("request delay cannot be negative")
		}
		cfg.requestDelay = d
		return nil
	}
}

// WithSender registers a notification channel.
//
// Can be called multiple times to register multiple channels; every
// registered channel receives every notification, delivered concurrently
// and independently.
func WithSender(s Sender) Option {
	return func(cfg *skConfig) error {
		if s == nil {
			return errors.New("sender cannot be nil")
		}
		cfg.senders = append(cfg.senders, s)
		return nil
	}
}

// WithSenders registers multiple notification channels at once.
// Equivalent to calling [WithSender] for each.
func WithSenders(senders ...Sender) Option {
	return func(cfg *skConfig) error {
		for _, s := range senders {
			if s == nil {
				return errors.New("sender cannot be nil")
			}
			cfg.senders = append(cfg.senders, s)
		}
		return nil
	}
}

// WithRetryPolicy sets the per-channel retry policy applied during dispatch.
//
// The same policy applies identically to every channel. Zero fields fall
// back to the defaults documented on [RetryPolicy].
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *skConfig) error {
		if p.MaxAttempts < 0 {
			return errors.New("max attempts cannot be negative")
		}
		cfg.retry = p
		return nil
	}
}

// WithSendTimeout sets the timeout for each individual send attempt,
// distinct from the retry policy's overall per-channel budget.
//
// Defaults to 20 seconds. Zero disables the per-attempt timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(cfg *skConfig) error {
		if d < 0 {
			return errors.New("send timeout cannot be negative")
		}
		cfg.sendTimeout = d
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Stakeout instance.
//
// This allows SDK consumers to control where logs are written and in what
// format. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *skConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithCheckCallback registers a function invoked after every completed check
// cycle, including cycles that failed at the fetch step.
//
// Multiple callbacks may be registered; they execute in registration order.
// Callbacks run synchronously on the results goroutine and must be
// non-blocking; long-running work should be dispatched elsewhere. Panics in
// callbacks are recovered and logged. Nil callbacks are silently ignored.
func WithCheckCallback(cb func(CheckStatus)) Option {
	return func(cfg *skConfig) error {
		if cb == nil {
			return nil
		}
		cfg.checkCallbacks = append(cfg.checkCallbacks, cb)
		return nil
	}
}

// WithReportCallback registers a function invoked with the [DeliveryReport]
// of every dispatch.
//
// The same execution rules as [WithCheckCallback] apply.
func WithReportCallback(cb func(DeliveryReport)) Option {
	return func(cfg *skConfig) error {
		if cb == nil {
			return nil
		}
		cfg.reportCallbacks = append(cfg.reportCallbacks, cb)
		return nil
	}
}

// WithStartupNotice sends a "watch started" message through every configured
// channel before the first check.
//
// Useful as an end-to-end test of the notification path when a watch begins.
func WithStartupNotice() Option {
	return func(cfg *skConfig) error {
		cfg.startupNotice = true
		return nil
	}
}
