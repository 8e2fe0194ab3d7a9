// Package comm runs the OWB link over a byte stream.
package comm

// The accessory talks to the host over a half-duplex UART. Every packet is
// scrambled and framed by package ppp. Inbound bytes are fed one at a time to
// Parser, which finds frame boundaries and recovers from garbage by
// resynchronizing on the next FLAG1. FIFO owns the stream: it runs the parser
// on a dedicated goroutine and serializes outbound frames.
//
// Client implements the host side of a command exchange: the accessory first
// echoes the exact command back (loopback), then optionally replies with the
// paired response opcode. Only one exchange is in flight at a time. Every
// packet is then handed to a Dispatcher, so notifications never depend on the
// exchange state.
