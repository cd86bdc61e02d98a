package stakeout

import "time"

// MatchResult holds the outcome of comparing an [Extraction] against a
// [Query].
//
// ObservedValue always carries the extracted value, even when Matched is
// false, to aid diagnosis of near-misses in logs.
type MatchResult struct {
	// Matched reports whether the query's condition held for this check.
	Matched bool

	// Found reports whether the extractor located a candidate value at all.
	Found bool

	// ObservedValue is the canonical string form of the extracted value.
	// Empty when Found is false.
	ObservedValue string

	// CheckedAt is the timestamp when the comparison was performed.
	CheckedAt time.Time
}

// Match compares an extraction against a query's target condition.
//
// JSON queries match on exact string equality between the canonical
// extracted value and the query's target value. HTML queries match on
// presence alone: the extractor has already confirmed the target text.
//
// Negative queries invert the matched flag after the mode rule is applied;
// the observed value is passed through untouched either way.
func Match(ex Extraction, q Query) MatchResult {
	var matched bool
	switch q.Mode() {
	case ModeJSON:
		matched = ex.Found && ex.Value == q.TargetValue()
	case ModeHTML:
		matched = ex.Found
	}

	if q.Negative() {
		matched = !matched
	}

	return MatchResult{
		Matched:       matched,
		Found:         ex.Found,
		ObservedValue: ex.Value,
		CheckedAt:     time.Now(),
	}
}
