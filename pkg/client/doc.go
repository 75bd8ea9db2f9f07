// Package client implements the TCP client: one-shot connects,
// reconnecting sessions, and connection handles with exactly-once close
// notification.
//
// A Client is built around a transport.Dialer and a wire.Codec. Open
// performs a single connection attempt and returns a *Channel. A
// Channel owns the socket: it runs the read loop, decodes frames,
// answers ping control messages, and signals its own demise exactly
// once through Done and CloseReason.
//
// OpenSession returns a *Session that keeps a logical connection alive
// using a reconnect.Policy. Each successful (re)connect produces a
// fresh Channel on Session.Channels; the previous Channel's close
// notification is always delivered before the next Channel appears.
// All session bookkeeping (current endpoint, attempt counter) lives on
// the session's run goroutine, so policies and callbacks never race
// with it.
//
// Lifecycle callbacks are delivered on a dispatch.Dispatcher. A client
// that creates its own dispatcher shuts it down in Close; a dispatcher
// supplied by the caller is shared and is left running.
package client
