package mcping

import (
	"errors"
	"fmt"
)

// Error kinds returned by the package. Detailed errors (*FieldError, *PacketIDError,
// *StateError) match one of these with errors.Is.
var (
	ErrResolutionFailed   = errors.New("mcping: resolution failed")
	ErrConnectFailed      = errors.New("mcping: connect failed")
	ErrTimeout            = errors.New("mcping: timeout")
	ErrTruncatedStream    = errors.New("mcping: truncated stream")
	ErrMalformedVarInt    = errors.New("mcping: malformed varint")
	ErrFrameTooLarge      = errors.New("mcping: frame too large")
	ErrUnexpectedPacketID = errors.New("mcping: unexpected packet id")
	ErrMissingField       = errors.New("mcping: missing field")
	ErrTypeMismatch       = errors.New("mcping: type mismatch")
	ErrInvalidState       = errors.New("mcping: invalid state")
)

// FieldError reports a status payload field that is absent or has the wrong type.
type FieldError struct {
	// Path is the dotted path of the field, e.g. "players.max".
	Path string

	// Want names the expected type for ErrTypeMismatch.
	Want string

	// Err is ErrMissingField or ErrTypeMismatch.
	Err error
}

func (e *FieldError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("%v: %s (want %s)", e.Err, e.Path, e.Want)
	}

	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *FieldError) Unwrap() error { return e.Err }

// PacketIDError reports a frame whose packet ID is not the one the current step expects.
type PacketIDError struct {
	Expected uint32
	Actual   uint32
}

func (e *PacketIDError) Error() string {
	return fmt.Sprintf("%v: got 0x%02x, want 0x%02x", ErrUnexpectedPacketID, e.Actual, e.Expected)
}

func (e *PacketIDError) Is(target error) bool { return target == ErrUnexpectedPacketID }

// StateError reports an operation called out of order.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%v: %s not allowed in state %s", ErrInvalidState, e.Op, e.State)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }
