package stakeout

import "errors"

// Mode selects the extraction strategy applied to a fetched response.
//
// Mode is a string type so it serializes cleanly in config files and logs
// while keeping type safety through the defined constants.
type Mode string

const (
	// ModeJSON parses the response as JSON and evaluates a locator
	// expression against it.
	ModeJSON Mode = "json"

	// ModeHTML parses the response as HTML and searches its rendered text
	// for the target value.
	ModeHTML Mode = "html"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}

// Query describes what to look for in a fetched response.
//
// Query is immutable after creation via [NewQuery]. All fields are private
// with getter methods, ensuring the query cannot be modified after
// construction.
//
// Queries are configured using the functional options pattern with
// [QueryOption] functions such as [WithLocator] and [WithNegative].
type Query struct {
	mode        Mode
	locator     string
	targetValue string
	negative    bool
}

// queryConfig holds mutable state during query construction.
type queryConfig struct {
	locator  string
	negative bool
}

// QueryOption is a function that configures a [Query] during construction.
//
// Built-in options: [WithLocator], [WithNegative].
type QueryOption func(*queryConfig) error

// WithLocator sets the locator expression for JSON queries.
//
// The locator selects the value to extract from a JSON document. A leading
// "$." is accepted, as are bracket indices and wildcards:
//
//	$.data.status
//	items[0].price
//	items[*].name
//
// JSON queries require a locator; HTML queries ignore it.
func WithLocator(locator string) QueryOption {
	return func(cfg *queryConfig) error {
		if locator == "" {
			return errors.New("locator cannot be empty")
		}
		cfg.locator = locator
		return nil
	}
}

// WithNegative inverts the query: a notification-worthy match means the
// target value is ABSENT rather than present.
//
// The observed value reported alongside the match is never inverted; it
// always reflects what the extractor actually saw.
func WithNegative() QueryOption {
	return func(cfg *queryConfig) error {
		cfg.negative = true
		return nil
	}
}

// NewQuery creates a [Query] with the given mode, target value, and options.
//
// The targetValue parameter is the value compared against the extracted
// candidate (JSON mode) or searched for in the page text (HTML mode).
//
// Returns an error if the mode is unknown, the target value is empty, or a
// JSON query is missing its locator.
//
// Example:
//
//	q, err := stakeout.NewQuery(stakeout.ModeJSON, "available",
//	    stakeout.WithLocator("$.data.status"),
//	)
func NewQuery(mode Mode, targetValue string, opts ...QueryOption) (Query, error) {
	if mode != ModeJSON && mode != ModeHTML {
		return Query{}, errors.New("mode must be json or html")
	}
	if targetValue == "" {
		return Query{}, errors.New("target value cannot be empty")
	}

	cfg := &queryConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Query{}, err
		}
	}

	if mode == ModeJSON && cfg.locator == "" {
		return Query{}, errors.New("json queries require a locator")
	}

	return Query{
		mode:        mode,
		locator:     cfg.locator,
		targetValue: targetValue,
		negative:    cfg.negative,
	}, nil
}

// Mode returns the query's extraction mode.
func (q Query) Mode() Mode {
	return q.mode
}

// Locator returns the locator expression for JSON queries.
// Empty for HTML queries.
func (q Query) Locator() string {
	return q.locator
}

// TargetValue returns the value the query matches against.
func (q Query) TargetValue() string {
	return q.targetValue
}

// Negative reports whether the query matches on absence rather than presence.
func (q Query) Negative() bool {
	return q.negative
}
