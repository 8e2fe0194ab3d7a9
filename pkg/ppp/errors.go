package ppp

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge indicates the payload exceeds MaxPayloadLen.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrFrameTooShort indicates the frame is not longer than MinFrameLen.
	ErrFrameTooShort = errors.New("frame too short")
	// ErrMarkerNotFound indicates FLAG1 FLAG2 is missing.
	ErrMarkerNotFound = errors.New("frame marker not found")
	// ErrTerminatorNotFound indicates no unescaped FLAG1 follows the marker.
	ErrTerminatorNotFound = errors.New("frame terminator not found")
	// ErrEmptyFrame indicates there is nothing between the marker and the checksum.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrInvalidEscape indicates ESC is followed by an unexpected byte.
	ErrInvalidEscape = errors.New("invalid escape sequence")
	// ErrChecksumMismatch is matched by *ChecksumError.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ChecksumError reports a frame whose checksum byte doesn't match its content.
type ChecksumError struct {
	Want byte // carried by the frame
	Got  byte // computed from the content
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: frame %#02x, computed %#02x", e.Want, e.Got)
}

// Is makes errors.Is(err, ErrChecksumMismatch) work.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// IsStructural tells whether err is a framing error other than a checksum
// mismatch. Structural errors usually mean the receiver lost track of frame
// boundaries, while a checksum mismatch points to corrupted bits.
func IsStructural(err error) bool {
	switch {
	case errors.Is(err, ErrFrameTooShort),
		errors.Is(err, ErrMarkerNotFound),
		errors.Is(err, ErrTerminatorNotFound),
		errors.Is(err, ErrEmptyFrame),
		errors.Is(err, ErrInvalidEscape):
		return true
	}
	return false
}
