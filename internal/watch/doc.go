// Package watch provides the fetch-and-extract polling loop for stakeout.
//
// This package is internal to stakeout and drives strictly sequential poll
// cycles against a single target: fetch with a hard timeout, extract a
// candidate value, emit a result. Cycles never overlap, which is what lets
// the consumer track match state without locks.
//
// The main components are:
//
//   - [Client]: HTTP fetch wrapper with timeout, size limit, and a default
//     User-Agent
//   - [Scheduler]: fixed-interval single-target loop with request pacing
//   - [CheckResult]: outcome of one cycle
//
// Users of the stakeout library should not need to interact with this
// package directly. Configuration is done through the main stakeout package.
package watch
