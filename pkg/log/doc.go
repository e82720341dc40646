// Package log provides structured protocol capture for the station agent.
//
// This package defines the Logger interface and Event types that record
// what the station exchanged with its management entity and how the
// connection agent reacted. It is separate from operational logging
// (slog): protocol capture is a complete machine-readable trace intended
// for offline analysis with the sta-log tool.
//
// # Basic Usage
//
//	// Console during development
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary capture file
//	fl, _ := log.NewFileLogger("/var/log/sta/agent.stalog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Frame: raw length-prefixed frames on the MLME link
//   - Primitive: decoded requests and confirmations
//   - StateChange: agent state transitions
//   - Notification: link lost / associated signals
//   - Error: desynchronization and link errors
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys,
// conventionally named *.stalog.
package log
