package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferOverflow indicates a frame didn't terminate within FrameBufferSize.
	ErrBufferOverflow = errors.New("frame buffer overflow")
	// ErrEmptyPacket indicates a frame carrying only the scramble seed.
	ErrEmptyPacket = errors.New("empty packet")
	// ErrEmptyPayload is returned when sending nothing.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrTimeout indicates the peer didn't echo or reply in time.
	ErrTimeout = errors.New("timeout")
	// ErrLoopbackMismatch is matched by *LoopbackError.
	ErrLoopbackMismatch = errors.New("loopback mismatch")
	// ErrNoReplyOpcode indicates a reply is expected for an opcode which has none.
	ErrNoReplyOpcode = errors.New("opcode has no reply")
)

// LoopbackError reports an echo which doesn't match what was sent.
// It indicates the transport corrupted the data.
type LoopbackError struct {
	Sent   []byte
	Echoed []byte
}

// Error implements error.
func (e *LoopbackError) Error() string {
	return fmt.Sprintf("loopback mismatch: sent % x, echoed % x", e.Sent, e.Echoed)
}

// Is makes errors.Is(err, ErrLoopbackMismatch) work.
func (e *LoopbackError) Is(target error) bool {
	return target == ErrLoopbackMismatch
}

// TransactionError is returned by Client when all attempts failed.
type TransactionError struct {
	Opcode   Opcode
	Attempts int
	Err      error
}

// Error implements error.
func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Opcode, e.Attempts, e.Err)
}

// Unwrap returns the error of the last attempt.
func (e *TransactionError) Unwrap() error {
	return e.Err
}
