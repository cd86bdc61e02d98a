package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sender is the dispatcher-internal representation of a notification channel.
//
// This mirrors the public stakeout.Sender interface as a plain struct to
// avoid a circular dependency between the root package and this one.
type Sender struct {
	// Name identifies the channel in reports and logs.
	Name string

	// Send delivers one message. A nil return means delivered.
	Send func(ctx context.Context, message string) error
}

// ChannelResult records the delivery outcome for a single channel.
type ChannelResult struct {
	// Channel is the sender's name.
	Channel string

	// Success reports whether the message was delivered.
	Success bool

	// Attempts is how many send attempts were made, including the
	// successful one.
	Attempts int

	// Err is the final error for failed channels. nil on success.
	Err error
}

// Report aggregates the per-channel outcomes of one dispatch call.
//
// Results are ordered to match the sender slice passed to
// [Dispatcher.Dispatch], one entry per sender.
type Report struct {
	// ID is a unique identifier for this dispatch, for log correlation.
	ID string

	// DispatchedAt is when the dispatch began.
	DispatchedAt time.Time

	// Results holds one entry per configured channel, in input order.
	Results []ChannelResult
}

// Succeeded returns how many channels delivered the message.
func (r Report) Succeeded() int {
	n := 0
	for _, cr := range r.Results {
		if cr.Success {
			n++
		}
	}
	return n
}

// Dispatcher fans a single message out to notification channels concurrently.
//
// Each channel is delivered independently: one channel's failure never blocks
// or fails another's send, and never aborts the dispatch. Transient failures
// are retried with exponential backoff per the configured [Policy]; permanent
// failures (see [Permanent]) are recorded immediately.
//
// The dispatcher holds no state across calls and is safe for concurrent use.
type Dispatcher struct {
	policy         Policy
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewDispatcher creates a [Dispatcher].
//
// A zero policy uses [DefaultPolicy]. attemptTimeout bounds each individual
// send attempt, distinct from the policy's overall retry budget; zero means
// no per-attempt timeout.
func NewDispatcher(policy Policy, attemptTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		policy:         policy.withDefaults(),
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}
}

// Dispatch delivers message to every sender and returns the aggregated
// [Report].
//
// Dispatch returns only after every channel has succeeded, exhausted its
// retries, or failed permanently. It never returns early on first success
// or first failure.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, senders []Sender) Report {
	report := Report{
		ID:           uuid.NewString(),
		DispatchedAt: time.Now(),
		Results:      make([]ChannelResult, len(senders)),
	}

	var wg sync.WaitGroup
	for i, s := range senders {
		wg.Add(1)
		go func(i int, s Sender) {
			defer wg.Done()
			attempts, err := d.deliver(ctx, s, message)
			report.Results[i] = ChannelResult{
				Channel:  s.Name,
				Success:  err == nil,
				Attempts: attempts,
				Err:      err,
			}
		}(i, s)
	}
	wg.Wait()

	return report
}

// deliver sends message through one channel, applying the retry policy.
func (d *Dispatcher) deliver(ctx context.Context, s Sender, message string) (int, error) {
	logger := d.logger.With("channel", s.Name)

	return retry(ctx, d.policy, logger, func(ctx context.Context) error {
		if d.attemptTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.attemptTimeout)
			defer cancel()
		}
		return d.safeSend(ctx, s, message)
	})
}

// safeSend calls the sender with panic recovery.
// A panicking sender is recorded as a permanent failure carrying a
// correlation ID; the full stack trace is logged server-side.
func (d *Dispatcher) safeSend(ctx context.Context, s Sender, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			d.logger.Error("sender panic",
				"channel", s.Name,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = Permanent(fmt.Errorf("sender panic (correlation_id: %s)", correlationID))
		}
	}()
	return s.Send(ctx, message)
}
