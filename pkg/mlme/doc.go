// Package mlme defines the management primitives exchanged between a
// station's connection agent and its MAC layer management entity (MLME).
//
// The agent issues exactly one request at a time and the MLME eventually
// answers it with the matching confirmation:
//
//	ScanRequest          -> ScanConfirm          (list of BSS descriptions)
//	AuthenticateRequest  -> AuthenticateConfirm  (result code, address)
//	AssociateRequest     -> AssociateConfirm     (result code, address)
//
// # Sum Types
//
// Requests and confirmations are closed sets. Both Request and Confirm are
// interfaces with an unexported marker method, so only the types in this
// package implement them, and consumers dispatch with an exhaustive type
// switch.
//
// # Sequence Numbers
//
// Every request carries a non-zero sequence number that the MLME echoes in
// its confirmation. Receivers use it to recognize confirmations that belong
// to an abandoned request.
//
// # Wire Encoding
//
// Primitives travel across process boundaries as CBOR with integer keys,
// wrapped in a two-field envelope:
//
//	{
//	  1: kind,     // uint8: 1=Scan, 2=Authenticate, 3=Associate
//	  2: payload   // kind-specific map
//	}
package mlme
