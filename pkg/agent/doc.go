// Package agent implements the station connection agent: the state machine
// that drives a wireless station through scanning, access point selection,
// authentication and association, and that starts over whenever anything
// goes wrong.
//
// # State Machine
//
//	IDLE --Start--> SCANNING
//	SCANNING --scan confirm, candidate chosen--> AUTHENTICATING
//	SCANNING --scan confirm, no candidate--> SCANNING (rescan)
//	AUTHENTICATING --success--> ASSOCIATING
//	AUTHENTICATING --failure--> SCANNING
//	ASSOCIATING --success--> CONNECTED
//	ASSOCIATING --failure--> SCANNING
//	any --link lost or Rescan--> SCANNING
//
// There is no terminal state. Every failure, whatever its reason, leads to
// an immediate rescan without backoff; timeouts are enforced by the MLME,
// which reports them as failure confirmations.
//
// # One Request In Flight
//
// The agent emits at most one request at a time through its RequestSink and
// waits for the matching confirmation. Each request carries a fresh
// sequence number. A request replaced before its confirmation arrived,
// typically by link loss, is remembered as abandoned. A late confirmation
// of the same kind for an abandoned request is stale and is dropped without
// affecting state; each abandoned request is dropped this way at most once.
//
// # Desynchronization
//
// A nil confirmation, an untagged one, one for a request that is neither
// outstanding nor abandoned (including duplicates of answered requests), or
// one of the wrong kind means the integration with the MLME is broken. So
// does a confirmation for the outstanding request whose data is unusable.
// HandleConfirm returns an error wrapping ErrDesync and leaves the state
// untouched; the host decides whether to halt. When the outstanding request
// was the one answered, nothing is awaited afterwards and a host that keeps
// going calls Rescan.
//
// # Concurrency
//
// Event methods (Start, HandleConfirm, HandleLinkLost, Rescan,
// HandleAssociated) must be called from a single goroutine. Accessors such as State and Stats
// are safe to call concurrently.
package agent
