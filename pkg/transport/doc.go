// Package transport provides the socket layer for reactor clients.
//
// The transport layer handles:
//   - TCP dialing with per-attempt socket options
//   - Optional TLS 1.3 with ALPN negotiation
//   - Length-prefixed message framing
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│     Application Messages       │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│       TLS 1.3 (optional)       │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// The Dialer interface is the substrate boundary: everything above it
// (session management, reconnection, lifecycle notification) is built
// against Dialer and never touches sockets directly. NetDialer is the
// production implementation; tests substitute fakes.
package transport
