// Package link carries management primitives between the connection agent
// and the MLME over any byte stream.
//
// Each primitive is CBOR-encoded by package mlme and sent as one frame:
//
//	+----------------+------------------+
//	| length (4, BE) | payload (length) |
//	+----------------+------------------+
//
// Conn is the station end and satisfies agent.RequestSink. PeerConn is the
// MLME end, used by the simulator.
package link
