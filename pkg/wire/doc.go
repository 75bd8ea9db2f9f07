// Package wire provides message encoding for reactor connections.
//
// A Codec translates application messages to and from the byte frames
// carried by the transport layer. The package ships two implementations:
//
//   - CBORCodec encodes arbitrary Go values as deterministic CBOR
//   - RawCodec passes []byte payloads through untouched
//
// Control messages (ping/pong/close) are a fixed CBOR structure handled
// below the application codec; they keep connections alive and allow
// graceful close regardless of which codec the application chose.
package wire
