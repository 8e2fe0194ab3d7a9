package env

import (
	"errors"
	"io"
	"sync"
)

// ErrPortClosed is returned by Link when no port is attached.
var ErrPortClosed = errors.New("serial port not open")

// Link is an io.ReadWriter forwarding to the currently open port,
// so the stack above survives reopening it.
type Link struct {
	lock sync.RWMutex
	rw   io.ReadWriter
}

// Attach makes rw the current port.
func (l *Link) Attach(rw io.ReadWriter) {
	l.lock.Lock()
	l.rw = rw
	l.lock.Unlock()
}

// Detach forgets the current port.
func (l *Link) Detach() {
	l.Attach(nil)
}

func (l *Link) current() io.ReadWriter {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.rw
}

// Read implements io.Reader.
func (l *Link) Read(p []byte) (int, error) {
	if rw := l.current(); rw != nil {
		return rw.Read(p)
	}
	return 0, ErrPortClosed
}

// Write implements io.Writer.
func (l *Link) Write(p []byte) (int, error) {
	if rw := l.current(); rw != nil {
		return rw.Write(p)
	}
	return 0, ErrPortClosed
}
