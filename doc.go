// Package stakeout watches a remote resource and sends notifications when
// its content transitions into or out of a matching state.
//
// Stakeout periodically fetches a URL (an HTML page or a JSON API), extracts
// a candidate value with one of two strategies, compares it against a target
// condition, and fires notifications through one or more channels - but only
// on a meaningful state transition, never on every poll.
//
// It is designed as an SDK-first library with immutable value types, pure
// functions for the match and transition logic, and composable configuration
// via the functional options pattern.
//
// # Quick Start
//
// Build a query, wire a channel, and start watching with graceful shutdown:
//
//	q, _ := stakeout.NewQuery(stakeout.ModeJSON, "available",
//	    stakeout.WithLocator("$.data.status"),
//	)
//
//	discord, _ := channel.NewDiscord(os.Getenv("DISCORD_WEBHOOK_URL"))
//
//	sk, _ := stakeout.New(
//	    stakeout.WithURL("https://shop.example.com/api/item/42"),
//	    stakeout.WithQuery(q),
//	    stakeout.WithSender(discord),
//	    stakeout.WithInterval(5 * time.Minute),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	sk.Start(ctx) // blocks until context is cancelled
//
// # Queries and Extractors
//
// A [Query] pairs an extraction mode with a target value. JSON queries
// evaluate a locator expression ([JSONLocatorExtractor]); HTML queries
// search the page's rendered text ([HTMLTextExtractor]). Negative queries
// ([WithNegative]) match on absence instead of presence. Custom extraction
// strategies implement the [Extractor] function type.
//
// # Transitions
//
// The transition tracker is a pure function over (current result, previous
// state): see [State.Evaluate]. A notification fires when the match flips,
// or when the observed value changes while still matching. Steady state is
// silent, including the very first check when nothing matches.
//
// # Notification Channels
//
// Channels implement the narrow [Sender] interface. Dispatch fans out to
// every channel concurrently with per-channel exponential-backoff retry;
// one channel's failure never affects another. Failures that retrying
// cannot fix should be marked with [Permanent]. Built-in senders for
// Discord webhooks, generic webhooks, and SMTP email live in the channel
// subpackage.
//
// # Architecture
//
// Stakeout consists of several internal packages (under internal/):
//
//   - internal/watch: single-target fetch loop with request pacing
//   - internal/dispatch: concurrent notification dispatch with retry
//
// The standalone binary under cmd/stakeout drives the same SDK from a YAML
// configuration file; see the config package.
package stakeout
