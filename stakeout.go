package stakeout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/mfenwick/stakeout/internal/dispatch"
	"github.com/mfenwick/stakeout/internal/watch"
)

const (
	defaultInterval       = 15 * time.Minute
	defaultRequestTimeout = 30 * time.Second
	defaultRequestDelay   = time.Second
	defaultSendTimeout    = 20 * time.Second
)

// CheckStatus describes one completed check cycle, as seen by callbacks
// registered with [WithCheckCallback].
type CheckStatus struct {
	// URL is the watched resource.
	URL string

	// Result is the match outcome for this cycle.
	// Meaningless when Err is set.
	Result MatchResult

	// State is the tracker state after this cycle.
	State State

	// StatusCode is the HTTP status code of the fetch. Zero if the request
	// never produced a response.
	StatusCode int

	// Latency is the time taken by the fetch.
	Latency time.Duration

	// Err is set when the cycle failed at the fetch step. Fetch failures
	// skip matching and leave State untouched.
	Err error
}

// Stakeout is the main orchestrator for watching a resource and notifying
// on match-state transitions.
//
// Stakeout coordinates the polling scheduler, the extraction/match pipeline,
// the transition tracker, and the notification dispatcher. It is created
// using [New] with functional options and started with [Stakeout.Start].
//
// The typical lifecycle is:
//
//	sk, err := stakeout.New(
//	    stakeout.WithURL("https://shop.example.com/api/item/42"),
//	    stakeout.WithQuery(q),
//	    stakeout.WithSender(discord),
//	)
//	if err != nil {
//	    slog.Error("failed to create stakeout", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	sk.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown; an in-flight notification dispatch is allowed
// to finish before Start returns.
type Stakeout struct {
	url             string
	method          string
	headers         map[string]string
	query           Query
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

// New creates a new [Stakeout] instance with the given options.
//
// A URL (via [WithURL]) and a query (via [WithQuery]) are required. Other
// options have sensible defaults:
//   - Check interval: 15 minutes
//   - Request timeout: 30 seconds
//   - Request delay (pacing): 1 second
//   - Send attempt timeout: 20 seconds
//
// Senders are optional; without any, transitions are logged but not
// delivered anywhere.
func New(opts ...Option) (*Stakeout, error) {
	cfg := &skConfig{
		interval:       defaultInterval,
		requestTimeout: defaultRequestTimeout,
		requestDelay:   defaultRequestDelay,
		sendTimeout:    defaultSendTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.url == "" {
		return nil, errors.New("a target URL is required")
	}
	parsed, err := url.Parse(cfg.url)
	if err != nil {
		return nil, errors.New("invalid URL: " + err.Error())
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("URL must have an http:// or https:// scheme")
	}

	if !cfg.querySet {
		return nil, errors.New("a query is required")
	}
	if cfg.query.Mode() != ModeJSON && cfg.query.Mode() != ModeHTML {
		return nil, errors.New("query must be constructed with NewQuery")
	}

	// duplicate channel names would make delivery reports ambiguous
	seen := make(map[string]bool, len(cfg.senders))
	for _, s := range cfg.senders {
		if seen[s.Name()] {
			return nil, fmt.Errorf("duplicate channel name: %q", s.Name())
		}
		seen[s.Name()] = true
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Stakeout{
		url:             cfg.url,
		method:          cfg.method,
		headers:         cfg.headers,
		query:           cfg.query,
		interval:        cfg.interval,
		requestTimeout:  cfg.requestTimeout,
		requestDelay:    cfg.requestDelay,
		senders:         cfg.senders,
		retry:           cfg.retry,
		sendTimeout:     cfg.sendTimeout,
		logger:          logger,
		checkCallbacks:  cfg.checkCallbacks,
		reportCallbacks: cfg.reportCallbacks,
		startupNotice:   cfg.startupNotice,
	}, nil
}

// URL returns the watched resource URL.
func (sk *Stakeout) URL() string {
	return sk.url
}

// Query returns the configured query.
func (sk *Stakeout) Query() Query {
	return sk.query
}

// Interval returns the configured check interval.
func (sk *Stakeout) Interval() time.Duration {
	return sk.interval
}

// Start begins watching the target.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - The target is checked immediately, then at the configured interval
//   - Each check runs fetch → extract → match → transition tracking in
//     strict sequence; cycles never overlap
//   - Notification-worthy transitions are dispatched to every configured
//     channel concurrently, with per-channel retry
//   - A fetch failure skips that cycle without touching tracked state
//
// On cancellation the in-flight cycle is completed or abandoned, but a
// dispatch that has already begun always runs to completion before Start
// returns. Returns nil on graceful shutdown.
func (sk *Stakeout) Start(ctx context.Context) error {
	sk.logger.Info("stakeout starting",
		"url", sk.url,
		"mode", sk.query.Mode().String(),
		"target_value", sk.query.TargetValue(),
		"negative", sk.query.Negative(),
		"interval", sk.interval.String(),
		"channels", len(sk.senders),
	)

	if ctx.Err() != nil {
		return nil
	}

	dispatcher := dispatch.NewDispatcher(sk.dispatchPolicy(), sk.sendTimeout, sk.logger)
	senders := sk.toDispatchSenders()

	if sk.startupNotice && len(senders) > 0 {
		msg := fmt.Sprintf("stakeout started: watching %s for %q (%s mode)",
			sk.url, sk.query.TargetValue(), sk.query.Mode())
		report := dispatcher.Dispatch(ctx, msg, senders)
		sk.logReport(reportFromDispatch(report, Event{SourceURL: sk.url, OccurredAt: report.DispatchedAt}))
	}

	extract := ExtractorForQuery(sk.query)
	scheduler := watch.NewScheduler(watch.Target{
		URL:     sk.url,
		Method:  sk.method,
		Headers: sk.headers,
		Timeout: sk.requestTimeout,
		Extract: func(body []byte, contentType string) (bool, string) {
			ex := extract(body, contentType)
			return ex.Found, ex.Value
		},
	}, sk.interval, sk.requestDelay, sk.logger)

	scheduler.Start(ctx)

	// track the results consumer goroutine to ensure a started dispatch
	// always finishes before Start returns
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sk.consumeResults(ctx, scheduler.Results(), dispatcher, senders)
	}()

	<-ctx.Done()
	scheduler.Stop() // closes the results channel
	wg.Wait()        // waits for any in-flight dispatch

	sk.logger.Info("stakeout stopped")
	return nil
}

// consumeResults owns the tracker [State]: it is the single goroutine that
// reads and replaces it, so no locking is needed by construction.
func (sk *Stakeout) consumeResults(ctx context.Context, results <-chan watch.CheckResult, dispatcher *dispatch.Dispatcher, senders []dispatch.Sender) {
	var state State

	for r := range results {
		if r.Err != nil {
			sk.logger.Warn("check failed, skipping cycle",
				"url", r.URL,
				"status_code", r.StatusCode,
				"error", r.Err.Error(),
			)
			sk.runCheckCallbacks(CheckStatus{
				URL:        r.URL,
				State:      state,
				StatusCode: r.StatusCode,
				Latency:    r.Latency,
				Err:        r.Err,
			})
			continue
		}

		result := Match(Extraction{Found: r.Found, Value: r.Value}, sk.query)
		notify, next := state.Evaluate(result)
		state = next

		sk.logger.Debug("check completed",
			"url", r.URL,
			"matched", result.Matched,
			"found", result.Found,
			"observed", result.ObservedValue,
			"latency_ms", r.Latency.Milliseconds(),
		)

		sk.runCheckCallbacks(CheckStatus{
			URL:        r.URL,
			Result:     result,
			State:      state,
			StatusCode: r.StatusCode,
			Latency:    r.Latency,
		})

		if !notify {
			continue
		}

		event := Event{
			Matched:       result.Matched,
			ObservedValue: result.ObservedValue,
			TargetValue:   sk.query.TargetValue(),
			SourceURL:     sk.url,
			OccurredAt:    result.CheckedAt,
		}
		sk.logger.Info("transition detected",
			"matched", event.Matched,
			"observed", event.ObservedValue,
		)

		if len(senders) == 0 {
			continue
		}

		// a dispatch, once begun, is never abandoned by shutdown
		dr := dispatcher.Dispatch(context.WithoutCancel(ctx), event.Message(), senders)
		report := reportFromDispatch(dr, event)
		sk.logReport(report)
		sk.runReportCallbacks(report)
	}
}

// dispatchPolicy converts the public retry policy to the internal one.
func (sk *Stakeout) dispatchPolicy() dispatch.Policy {
	return dispatch.Policy{
		MaxAttempts: sk.retry.MaxAttempts,
		BaseDelay:   sk.retry.BaseDelay,
		Multiplier:  sk.retry.Multiplier,
		MaxDelay:    sk.retry.MaxDelay,
		MaxElapsed:  sk.retry.MaxElapsed,
	}
}

// toDispatchSenders adapts the public senders to the dispatcher's type.
func (sk *Stakeout) toDispatchSenders() []dispatch.Sender {
	out := make([]dispatch.Sender, len(sk.senders))
	for i, s := range sk.senders {
		out[i] = dispatch.Sender{Name: s.Name(), Send: s.Send}
	}
	return out
}

// logReport logs the outcome of one dispatch, one line per failed channel.
func (sk *Stakeout) logReport(report DeliveryReport) {
	sk.logger.Info("notifications dispatched",
		"dispatch_id", report.ID,
		"succeeded", report.Succeeded(),
		"channels", len(report.Results),
	)
	for _, cr := range report.Results {
		if cr.Success || cr.Err == nil {
			continue
		}
		sk.logger.Warn("channel delivery failed",
			"dispatch_id", report.ID,
			"channel", cr.Channel,
			"attempts", cr.Attempts,
			"error", cr.Err.Error(),
		)
	}
}

func (sk *Stakeout) runCheckCallbacks(status CheckStatus) {
	for _, cb := range sk.checkCallbacks {
		invokeCallbackSafe(cb, status, sk.logger)
	}
}

func (sk *Stakeout) runReportCallbacks(report DeliveryReport) {
	for _, cb := range sk.reportCallbacks {
		invokeCallbackSafe(cb, report, sk.logger)
	}
}

// invokeCallbackSafe calls a callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe[T any](cb func(T), arg T, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("callback panicked", "panic", r)
		}
	}()
	cb(arg)
}
