package kb

import (
	"errors"
	"fmt"
)

var (
	// ErrShortReport indicates a report shorter than its format.
	ErrShortReport = errors.New("short report")
	// ErrTooManyFingers indicates a touch report with more contacts than supported.
	ErrTooManyFingers = errors.New("too many fingers")
	// ErrNotConnected is returned by commands needing an attached accessory.
	ErrNotConnected = errors.New("accessory not connected")
)

// UnexpectedReplyError reports a reply which doesn't acknowledge the command.
type UnexpectedReplyError struct {
	Want []byte
	Got  []byte
}

// Error implements error.
func (e *UnexpectedReplyError) Error() string {
	return fmt.Sprintf("unexpected reply % x, want % x", e.Got, e.Want)
}
