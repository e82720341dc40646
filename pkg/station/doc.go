// Package station runs one wireless station: it connects the connection
// agent to an MLME link and to the notification board, and drives the
// agent from a single event loop.
//
// # Event Loop
//
// Run starts the agent and then feeds it, one at a time, every
// confirmation arriving on the link and every notification published for
// this station. The agent is never called concurrently.
//
// # Halting
//
// A desynchronized agent stops the loop with an error wrapping ErrHalted,
// unless Config.ContinueOnDesync is set, in which case the error is logged
// and the event dropped. Link failures also stop the loop.
//
// # Persistence
//
// With a StateStore configured, the station records each successful
// association and lifetime counters. The stored state is informational
// only; the agent always begins by scanning.
package station
