package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Codec translates application messages to and from byte frames.
// Implementations must be safe for concurrent use: a connection encodes
// on its send path and decodes on its receive path simultaneously.
type Codec interface {
	// Encode converts an application message into frame bytes.
	Encode(v any) ([]byte, error)

	// Decode converts frame bytes into an application message.
	Decode(data []byte) (any, error)
}

// ErrNotBytes is returned by RawCodec when asked to encode a value
// that is not a byte slice.
var ErrNotBytes = errors.New("raw codec requires []byte payload")

// encMode is the CBOR encoder mode for application messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for application messages.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical, // Deterministic key ordering
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix, // Unix timestamps
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet, // Ignore duplicate keys (last wins)
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// CBORCodec encodes application messages as deterministic CBOR.
// Decode returns the generic CBOR representation (maps, slices, scalars);
// callers that know the concrete type should use Unmarshal directly.
type CBORCodec struct{}

// Encode marshals v as CBOR.
func (CBORCodec) Encode(v any) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cbor encode: %w", err)
	}
	return data, nil
}

// Decode unmarshals CBOR into a generic value.
func (CBORCodec) Decode(data []byte) (any, error) {
	var v any
	if err := Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("cbor decode: %w", err)
	}
	return v, nil
}

// RawCodec passes byte slices through without interpretation.
// Use it when the application does its own serialization.
type RawCodec struct{}

// Encode returns the payload unchanged. Non-[]byte values are rejected.
func (RawCodec) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrNotBytes
	}
	return b, nil
}

// Decode returns the frame bytes unchanged.
func (RawCodec) Decode(data []byte) (any, error) {
	return data, nil
}

// Compile-time interface satisfaction checks.
var (
	_ Codec = CBORCodec{}
	_ Codec = RawCodec{}
)
