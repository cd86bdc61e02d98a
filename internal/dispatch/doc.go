// Package dispatch fans notification messages out to configured channels.
//
// This package is internal to stakeout and handles concurrent delivery with
// per-channel retry and failure isolation. Each channel is delivered by its
// own goroutine; transient failures back off exponentially, permanent
// failures are recorded immediately, and one channel can never block or
// fail another.
//
// The main components are:
//
//   - [Dispatcher]: concurrent fan-out with an aggregated delivery report
//   - [Policy]: retry/backoff parameters applied identically to every channel
//   - [Permanent]: error marker for failures that must not be retried
//
// Users of the stakeout library should not need to interact with this
// package directly. Configuration is done through the main stakeout package.
package dispatch
