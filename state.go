package stakeout

import "time"

// State is the last observed match outcome, used to decide whether a new
// check represents a notification-worthy transition.
//
// State is a plain value with a single owner: the results loop inside
// [Stakeout.Start] holds the only copy, passes it to [State.Evaluate], and
// replaces it with the returned value. There is no shared mutable state and
// therefore nothing to lock. The zero value means "never matched", which is
// the correct starting state for a fresh process.
type State struct {
	// LastMatched is the matched flag from the most recent check.
	LastMatched bool

	// LastValue is the observed value from the most recent check.
	LastValue string

	// LastTransitionAt is when the last notification-worthy transition
	// occurred. Zero if none has occurred yet.
	LastTransitionAt time.Time
}

// Evaluate decides whether the current check result is worth notifying about
// and returns the state that should replace the receiver.
//
// A transition is notification-worthy when the matched flag flips, or when
// the observed value changes while the query is still matching (a status
// field moving between several "match" values). Repeated identical results
// never re-notify.
//
// Because the zero State is "never matched", the very first check notifies
// only if it matched.
//
// Evaluate is a pure function: it mutates nothing and the returned State
// replaces every field as a unit.
func (s State) Evaluate(current MatchResult) (notify bool, next State) {
	notify = current.Matched != s.LastMatched ||
		(current.Matched && s.LastMatched && current.ObservedValue != s.LastValue)

	next = State{
		LastMatched:      current.Matched,
		LastValue:        current.ObservedValue,
		LastTransitionAt: s.LastTransitionAt,
	}
	if notify {
		next.LastTransitionAt = current.CheckedAt
	}
	return notify, next
}
