package bpdu

import "fmt"

// Error types for BPDU decoding. A frame failing with any of these is
// dropped and counted, it never reaches a state machine.
var (
	// ErrShortFrame is returned when the payload is too small for its type
	ErrShortFrame = fmt.Errorf("bpdu too short")

	// ErrBadProtocolID is returned when the protocol identifier is not zero
	ErrBadProtocolID = fmt.Errorf("bad protocol identifier")

	// ErrBadBPDUType is returned on an unknown version/type combination
	ErrBadBPDUType = fmt.Errorf("bad bpdu type")

	// ErrBadLength is returned when an embedded length field is inconsistent
	ErrBadLength = fmt.Errorf("bad bpdu length")

	// ErrBadConfigID is returned when the MST configuration identifier is malformed
	ErrBadConfigID = fmt.Errorf("bad mst configuration identifier")
)

// DecodeError wraps a decode failure with the offset it was detected at.
type DecodeError struct {
	Offset int   // Byte offset into the payload
	Err    error // Underlying sentinel error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bpdu decode at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
