// Package log provides structured lifecycle event logging for reactor.
//
// Events are captured at two layers:
//   - Transport: raw frames and connect/close transitions of a single
//     connection
//   - Session: reconnect attempts, policy decisions, session state changes
//
// Applications implement the Logger interface (or use one of the provided
// adapters) and pass it to the client configuration. Logging is
// observability only: no behavior of the client depends on it, and a nil
// logger disables it entirely.
//
// # Adapters
//
//   - SlogAdapter writes events to a log/slog logger for console output
//   - FileLogger appends CBOR-encoded events to a file for later analysis
//   - MultiLogger fans events out to several loggers at once
package log
