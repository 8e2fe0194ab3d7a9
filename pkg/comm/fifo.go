package comm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/owb.go/pkg/ppp"
)

// DefaultWriteRetries is the number of attempts to write a frame.
const DefaultWriteRetries = 3

// PacketHandler is called when a packet is received.
type PacketHandler interface {
	HandlePacket(context.Context, *Packet)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(context.Context, *Packet)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt *Packet) {
	f(ctx, pkt)
}

// DropNotifier is called when an inbound frame is dropped.
type DropNotifier interface {
	FrameDropped(context.Context, error)
}

// FrameDroppedFunc is func type of DropNotifier.
type FrameDroppedFunc func(context.Context, error)

// FrameDropped implements DropNotifier.
func (f FrameDroppedFunc) FrameDropped(ctx context.Context, err error) {
	f(ctx, err)
}

// Stats counts link activity.
type Stats struct {
	Sent           uint64 // frames written
	WriteErrors    uint64 // failed frame writes, including retried ones
	Packets        uint64 // packets received
	ChecksumErrors uint64
	FramingErrors  uint64
	Overflows      uint64
	EmptyPackets   uint64
}

// Dropped returns the total of dropped inbound frames.
func (s Stats) Dropped() uint64 {
	return s.ChecksumErrors + s.FramingErrors + s.Overflows + s.EmptyPackets
}

// FIFO sends and receives packets over a byte stream.
type FIFO struct {
	ReadWriter   io.ReadWriter
	Handler      PacketHandler
	Notifier     DropNotifier
	Codec        ppp.Codec
	WriteRetries int
	// SeedFunc generates scramble seeds, ppp.NewSeed if nil.
	SeedFunc func() byte

	writeLock sync.Mutex
	statsLock sync.Mutex
	stats     Stats
	parser    Parser
}

// NewFIFO creates a FIFO.
func NewFIFO(rw io.ReadWriter) *FIFO {
	return &FIFO{
		ReadWriter:   rw,
		WriteRetries: DefaultWriteRetries,
	}
}

// Stats returns a snapshot of the counters.
func (f *FIFO) Stats() Stats {
	f.statsLock.Lock()
	defer f.statsLock.Unlock()
	return f.stats
}

func (f *FIFO) count(fn func(*Stats)) {
	f.statsLock.Lock()
	fn(&f.stats)
	f.statsLock.Unlock()
}

func (f *FIFO) seed() byte {
	if fn := f.SeedFunc; fn != nil {
		return fn() & ppp.SeedMask
	}
	return ppp.NewSeed()
}

// Send scrambles, frames and writes a packet.
func (f *FIFO) Send(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	frame, err := f.Codec.Pack(make([]byte, 0, ppp.EncodeBufLen(1)), payload, f.seed())
	if err != nil {
		return err
	}
	if glog.V(4) {
		glog.Infof("TX % x -> % x", payload, frame)
	}

	retries := f.WriteRetries
	if retries <= 0 {
		retries = 1
	}
	f.writeLock.Lock()
	defer f.writeLock.Unlock()
	for i := 1; ; i++ {
		n, err := f.ReadWriter.Write(frame)
		if err == nil && n < len(frame) {
			err = io.ErrShortWrite
		}
		if err == nil {
			f.count(func(s *Stats) { s.Sent++ })
			return nil
		}
		f.count(func(s *Stats) { s.WriteErrors++ })
		if i >= retries {
			return fmt.Errorf("write frame: %w", err)
		}
		glog.Warningf("write frame attempt %d/%d: %v", i, retries, err)
	}
}

// Run processes inbound bytes until ctx is done or the reader fails.
func (f *FIFO) Run(ctx context.Context) error {
	f.parser.Codec = f.Codec
	f.parser.Reset()

	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go f.readLoop(subCtx, dataCh, errCh)
	for {
		select {
		case data := <-dataCh:
			for _, b := range data {
				f.applyParseResult(ctx, f.parser.Parse(b))
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *FIFO) readLoop(ctx context.Context, dataCh chan []byte, errCh chan error) {
	buf := make([]byte, FrameBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := f.ReadWriter.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case dataCh <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil && !os.IsTimeout(err) {
			errCh <- err
			return
		}
	}
}

func (f *FIFO) applyParseResult(ctx context.Context, pr ParseResult) {
	if pr.Err != nil {
		f.frameDropped(ctx, pr.Err)
		return
	}
	if pr.Packet == nil {
		return
	}
	f.count(func(s *Stats) { s.Packets++ })
	if glog.V(3) {
		glog.Infof("RX %s", pr.Packet)
	}
	if h := f.Handler; h != nil {
		h.HandlePacket(ctx, pr.Packet)
	}
}

func (f *FIFO) frameDropped(ctx context.Context, err error) {
	switch {
	case errors.Is(err, ppp.ErrChecksumMismatch):
		f.count(func(s *Stats) { s.ChecksumErrors++ })
		glog.Warningf("frame dropped, corrupted: %v", err)
	case errors.Is(err, ErrBufferOverflow):
		f.count(func(s *Stats) { s.Overflows++ })
		glog.Warningf("frame dropped: %v", err)
	case errors.Is(err, ErrEmptyPacket):
		f.count(func(s *Stats) { s.EmptyPackets++ })
		glog.V(1).Infof("frame dropped: %v", err)
	default:
		f.count(func(s *Stats) { s.FramingErrors++ })
		glog.V(1).Infof("frame dropped, resync: %v", err)
	}
	if n := f.Notifier; n != nil {
		n.FrameDropped(ctx, err)
	}
}
