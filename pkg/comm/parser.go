package comm

import (
	"github.com/robotalks/owb.go/pkg/ppp"
)

// FrameBufferSize is the capacity of the reassembly buffer.
const FrameBufferSize = 256

// ParseState is the state of Parser.
type ParseState int

const (
	// StateWaitFlag1 is looking for the first byte of a frame.
	StateWaitFlag1 ParseState = iota
	// StateWaitFlag2 has seen FLAG1 and expects FLAG2, tolerating more FLAG1s.
	StateWaitFlag2
	// StateWaitTerminator is accumulating a frame until the next FLAG1.
	StateWaitTerminator
)

// String implements fmt.Stringer.
func (s ParseState) String() string {
	switch s {
	case StateWaitFlag1:
		return "wait-flag1"
	case StateWaitFlag2:
		return "wait-flag2"
	case StateWaitTerminator:
		return "wait-terminator"
	}
	return "invalid"
}

// ParseResult is the outcome of one parsing step.
// At most one of Packet and Err is set.
type ParseResult struct {
	Packet *Packet
	// Err is set when a complete or overflowing frame is dropped.
	Err error
}

// Parser reassembles frames from a byte stream.
// It's not safe for concurrent use.
type Parser struct {
	Codec ppp.Codec

	state ParseState
	buf   [FrameBufferSize]byte
	n     int
}

// State gets the current state.
func (p *Parser) State() ParseState {
	return p.state
}

// Buffered returns the number of bytes accumulated for the current frame.
func (p *Parser) Buffered() int {
	return p.n
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state, p.n = StateWaitFlag1, 0
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case StateWaitFlag1:
		if b == ppp.Flag1 {
			p.restart()
		}
	case StateWaitFlag2:
		switch b {
		case ppp.Flag2:
			p.buf[p.n] = b
			p.n++
			p.state = StateWaitTerminator
		case ppp.Flag1:
			// padding, or the terminator of the previous frame.
		default:
			p.state = StateWaitFlag1
		}
	case StateWaitTerminator:
		if b != ppp.Flag1 {
			p.buf[p.n] = b
			p.n++
			if p.n >= FrameBufferSize {
				p.Reset()
				pr.Err = ErrBufferOverflow
			}
			return
		}
		if p.n < ppp.MinFrameLen {
			p.restart()
			return
		}
		p.buf[p.n] = b
		p.n++
		return p.frameReady()
	}
	return
}

// restart keeps a single FLAG1 and waits for FLAG2.
func (p *Parser) restart() {
	p.buf[0] = ppp.Flag1
	p.n = 1
	p.state = StateWaitFlag2
}

func (p *Parser) frameReady() (pr ParseResult) {
	seed, data, err := p.Codec.Unpack(p.buf[:p.n])
	if err != nil {
		// the terminator may start the next frame.
		p.restart()
		pr.Err = err
		return
	}
	p.Reset()
	if len(data) == 0 {
		pr.Err = ErrEmptyPacket
		return
	}
	pr.Packet = &Packet{Seed: seed, Data: data}
	return
}
