package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy controls per-channel retry behaviour.
//
// A send is attempted up to MaxAttempts times. After each transient failure
// the dispatcher waits BaseDelay multiplied by Multiplier for every prior
// failure, capped at MaxDelay. MaxElapsed bounds the total time spent on one
// channel including backoff waits; once the next wait would exceed it, the
// channel is recorded as failed.
type Policy struct {
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

// DefaultPolicy is used when the caller provides a zero [Policy].
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	Multiplier:  2,
	MaxDelay:    30 * time.Second,
	MaxElapsed:  2 * time.Minute,
}

// withDefaults fills zero fields from [DefaultPolicy].
func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultPolicy.Multiplier
	}
	return p
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err to mark it as non-retryable.
//
// Channel senders return Permanent errors for failures that repeating the
// request cannot fix: rejected payloads, invalid credentials, 4xx-equivalent
// responses. The dispatcher records them immediately without retrying.
// Wrapping nil returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err is marked non-retryable via [Permanent].
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// retry runs fn until it succeeds, fails permanently, exhausts the attempt
// count, or runs out of elapsed budget. It returns how many attempts were
// made alongside the final error (nil on success).
//
// Backoff waits are cancellable: a cancelled context aborts the wait and
// returns the context error without making further attempts.
func retry(ctx context.Context, p Policy, logger *slog.Logger, fn func(context.Context) error) (attempts int, err error) {
	p = p.withDefaults()
	start := time.Now()
	delay := p.BaseDelay

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}

		attempts = attempt
		err = fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if IsPermanent(err) {
			return attempts, err
		}
		if attempt >= p.MaxAttempts {
			return attempts, err
		}
		if p.MaxElapsed > 0 && time.Since(start)+delay > p.MaxElapsed {
			logger.Warn("retry budget exhausted",
				"attempt", attempt,
				"elapsed", time.Since(start).String(),
				"error", err.Error(),
			)
			return attempts, err
		}

		logger.Warn("send failed, backing off",
			"attempt", attempt,
			"delay", delay.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
}
