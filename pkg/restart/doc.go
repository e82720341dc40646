// Package restart supervises station sessions and starts a new one when a
// session halts.
//
// A station halts when its agent desynchronizes from the MLME or the MLME
// link fails. The agent itself never backs off: failed joins and lost links
// rescan immediately. Restarting a halted session is different, since the
// cause is usually persistent, so the supervisor waits with exponential
// backoff:
//
//  1. Initial delay: 500 milliseconds
//  2. Exponential increase: 1s, 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds
//  4. Reset once a session has run for StableAfter
//
// # Jitter
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package restart
