package link

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrFrameTooLarge indicates an envelope does not fit in one frame.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrMalformedFrame indicates a COBS stuffing violation.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrChecksum indicates the checksum carried does not match the content.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrUnknownKind indicates an envelope tag other than Command or Ack.
	ErrUnknownKind = errors.New("unknown envelope kind")
)

// DecodeError wraps a failure to decode a received frame.
type DecodeError struct {
	Stage string
	Err   error
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

// Cause returns the underlying error, for errors.Cause.
func (e *DecodeError) Cause() error {
	return e.Err
}
