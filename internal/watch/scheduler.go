package watch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Extractor is the scheduler-internal extraction function.
//
// This mirrors the public stakeout.Extractor type as plain return values to
// avoid a circular dependency between the root package and this one.
type Extractor func(body []byte, contentType string) (found bool, value string)

// Target describes the single resource a [Scheduler] watches.
type Target struct {
	// URL is the resource to fetch each cycle.
	URL string

	// Method is the HTTP method. Empty defaults to GET.
	Method string

	// Headers contains custom HTTP headers sent with every fetch.
	Headers map[string]string

	// Timeout is the per-fetch timeout.
	Timeout time.Duration

	// Extract locates the candidate value in a fetched body.
	Extract Extractor
}

// CheckResult is the outcome of one poll cycle.
//
// When Err is set the fetch failed (network error, timeout, or non-2xx
// status) and extraction was skipped: Found and Value are meaningless and
// the consumer must leave its match state untouched for that cycle.
type CheckResult struct {
	// URL is the target URL that was fetched.
	URL string

	// Found reports whether the extractor located a candidate value.
	Found bool

	// Value is the extracted candidate value. Empty when Found is false.
	Value string

	// StatusCode is the HTTP status code. Zero if the request never
	// produced a response.
	StatusCode int

	// Latency is the time taken by the fetch.
	Latency time.Duration

	// CheckedAt is when the cycle completed.
	CheckedAt time.Time

	// Err is set when the cycle failed at the fetch step.
	Err error
}

// Scheduler drives fetch-extract cycles against a single target at a fixed
// interval.
//
// Cycles run strictly sequentially on one goroutine and never overlap, so
// downstream match-state handling needs no locking. The first cycle runs
// immediately on Start, then a ticker fires at the configured interval.
// A minimum delay between consecutive outbound fetches is enforced
// independently of the interval, bounding load on the target even if a
// cycle were ever to issue more than one fetch.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	target       Target
	interval     time.Duration
	requestDelay time.Duration
	client       *Client
	results      chan CheckResult
	logger       *slog.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	lastFetchAt time.Time
}

// NewScheduler creates a polling [Scheduler].
//
// Parameters:
//   - target: The resource to watch and how to extract from it
//   - interval: Time between poll cycles
//   - requestDelay: Minimum delay between consecutive outbound fetches
//   - logger: Logger for scheduler events (pacing, panic recovery)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(target Target, interval, requestDelay time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		target:       target,
		interval:     interval,
		requestDelay: requestDelay,
		client:       NewClient(),
		results:      make(chan CheckResult, 1),
		logger:       logger,
	}
}

// Results returns a receive-only channel that emits one [CheckResult] per
// completed cycle.
//
// The channel is closed when the scheduler stops. A cycle abandoned by
// cancellation emits nothing.
func (s *Scheduler) Results() <-chan CheckResult {
	return s.results
}

// Start begins the polling loop in a background goroutine.
//
// Start is non-blocking and returns immediately. The scheduler will:
//  1. Run one cycle immediately
//  2. Run one cycle per interval tick thereafter
//  3. Continue until [Scheduler.Stop] is called or the context is cancelled
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		s.runCycle(runCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.runCycle(runCtx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for the in-flight cycle to finish or
// abandon.
//
// Stop cancels the scheduler's context and blocks until the polling loop
// exits and the results channel is closed. Stop is idempotent and safe to
// call multiple times. Calling Stop before Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.client != nil {
		s.client.Close()
	}

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// runCycle performs one fetch-extract cycle and emits its result.
//
// Cancellation is checked at the start of the cycle and at every blocking
// wait; a cycle abandoned mid-flight emits no result.
func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if !s.pace(ctx) {
		return
	}

	resp := s.client.Fetch(ctx, s.target.Method, s.target.URL, s.target.Headers, s.target.Timeout)
	s.lastFetchAt = time.Now()

	result := CheckResult{
		URL:        s.target.URL,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
		CheckedAt:  time.Now(),
		Err:        resp.Err,
	}

	if resp.Err == nil {
		found, value, err := s.safeExtract(resp.Body, resp.ContentType)
		result.Found = found
		result.Value = value
		result.Err = err
	}

	// drop the result rather than block past cancellation
	select {
	case s.results <- result:
	case <-ctx.Done():
	}
}

// pace enforces the minimum delay between consecutive outbound fetches.
// Returns false if the wait was cancelled.
func (s *Scheduler) pace(ctx context.Context) bool {
	if s.requestDelay <= 0 || s.lastFetchAt.IsZero() {
		return true
	}

	wait := s.requestDelay - time.Since(s.lastFetchAt)
	if wait <= 0 {
		return true
	}

	s.logger.Debug("pacing before fetch", "wait", wait.String())
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

// safeExtract calls the extractor with panic recovery.
// If the extractor panics, it logs the full stack trace with a correlation
// ID and reports the cycle as not found with an error carrying the ID.
func (s *Scheduler) safeExtract(body []byte, contentType string) (found bool, value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("extractor panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			found = false
			value = ""
			err = fmt.Errorf("extractor panic (correlation_id: %s)", correlationID)
		}
	}()

	if s.target.Extract == nil {
		return false, "", nil
	}
	found, value = s.target.Extract(body, contentType)
	return found, value, nil
}
