package stakeout

import (
	"context"
	"fmt"
	"time"

	"github.com/mfenwick/stakeout/internal/dispatch"
)

// Sender delivers notification messages to one channel.
//
// Implementations wrap a chat-bot API, a webhook POST, an SMTP relay, or
// anything else that can carry a short text message. A Sender must be safe
// for concurrent use and should honour context cancellation in Send.
//
// Send errors are retried with exponential backoff unless marked with
// [Permanent]. See the channel package for built-in implementations.
type Sender interface {
	// Name identifies the channel in delivery reports and logs.
	Name() string

	// Send delivers one message. A nil return means delivered.
	Send(ctx context.Context, message string) error
}

// Permanent wraps err to mark it as non-retryable.
//
// Senders return Permanent errors for failures that repeating the request
// cannot fix: rejected payloads, invalid credentials, 4xx-equivalent
// responses. Wrapping nil returns nil.
func Permanent(err error) error {
	return dispatch.Permanent(err)
}

// IsPermanent reports whether err is marked non-retryable via [Permanent].
func IsPermanent(err error) bool {
	return dispatch.IsPermanent(err)
}

// RetryPolicy controls per-channel retry behaviour during a dispatch.
//
// Zero fields fall back to defaults: 5 attempts, 1s base delay, multiplier
// 2, 30s delay cap, 2m total budget per channel.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of send attempts per channel.
	MaxAttempts int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// Multiplier scales the delay after each failed attempt.
	Multiplier float64

	// MaxDelay caps a single backoff wait. Zero means uncapped.
	MaxDelay time.Duration

	// MaxElapsed bounds the total retry budget per channel, including
	// backoff waits. Zero means unbounded.
	MaxElapsed time.Duration
}

// Event is the immutable description of a notification-worthy transition.
type Event struct {
	// Matched is the new matched flag after the transition.
	Matched bool

	// ObservedValue is the value the extractor saw. Empty if none.
	ObservedValue string

	// TargetValue is the value the query was looking for.
	TargetValue string

	// SourceURL is the watched resource.
	SourceURL string

	// OccurredAt is when the transition was detected.
	OccurredAt time.Time
}

// Message renders the event as the notification text sent to every channel.
func (e Event) Message() string {
	if e.Matched {
		if e.ObservedValue != "" && e.ObservedValue != e.TargetValue {
			return fmt.Sprintf("match on %s: observed %q for target %q", e.SourceURL, e.ObservedValue, e.TargetValue)
		}
		return fmt.Sprintf("match on %s: %q found", e.SourceURL, e.TargetValue)
	}
	if e.ObservedValue != "" {
		return fmt.Sprintf("match cleared on %s: now observing %q (target %q)", e.SourceURL, e.ObservedValue, e.TargetValue)
	}
	return fmt.Sprintf("match cleared on %s: %q no longer found", e.SourceURL, e.TargetValue)
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

// DeliveryReport aggregates the per-channel outcomes of one dispatch.
//
// Reports exist for logging and callbacks only; nothing persists them.
// Results are ordered to match the configured senders, one entry each.
type DeliveryReport struct {
	// ID is a unique identifier for this dispatch, for log correlation.
	ID string

	// Event is the transition that triggered the dispatch.
	Event Event

	// DispatchedAt is when the dispatch began.
	DispatchedAt time.Time

	// Results holds one entry per configured channel, in input order.
	Results []ChannelResult
}

// Succeeded returns how many channels delivered the message.
func (r DeliveryReport) Succeeded() int {
	n := 0
	for _, cr := range r.Results {
		if cr.Success {
			n++
		}
	}
	return n
}

// reportFromDispatch converts the internal dispatch report to the public type.
func reportFromDispatch(dr dispatch.Report, ev Event) DeliveryReport {
	report := DeliveryReport{
		ID:           dr.ID,
		Event:        ev,
		DispatchedAt: dr.DispatchedAt,
		Results:      make([]ChannelResult, len(dr.Results)),
	}
	for i, cr := range dr.Results {
		report.Results[i] = ChannelResult{
			Channel:  cr.Channel,
			Success:  cr.Success,
			Attempts: cr.Attempts,
			Err:      cr.Err,
		}
	}
	return report
}
