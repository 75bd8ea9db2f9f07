package wire

import (
	"fmt"
)

// ControlMessage represents a transport-level control message.
// Control messages are handled below the application codec.
type ControlMessage struct {
	Type     ControlMessageType `cbor:"1,keyasint"`
	Sequence uint32             `cbor:"2,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlMessageType = 3
)

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}

// EncodePing encodes a ping control message.
func EncodePing(seq uint32) ([]byte, error) {
	return Marshal(&ControlMessage{Type: ControlPing, Sequence: seq})
}

// EncodePong encodes a pong control message.
func EncodePong(seq uint32) ([]byte, error) {
	return Marshal(&ControlMessage{Type: ControlPong, Sequence: seq})
}

// EncodeClose encodes a close control message.
func EncodeClose() ([]byte, error) {
	return Marshal(&ControlMessage{Type: ControlClose})
}

// DecodeControlMessage decodes CBOR bytes into a control message.
// Returns an error if the bytes do not carry a valid control type;
// callers use that to tell control frames from application frames.
func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode control message: %w", err)
	}
	switch msg.Type {
	case ControlPing, ControlPong, ControlClose:
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown control message type %d", msg.Type)
	}
}
