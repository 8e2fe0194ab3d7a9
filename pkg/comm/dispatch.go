package comm

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

// Dispatcher routes unsolicited packets to handlers by opcode or category.
// An opcode handler takes precedence over a category handler.
type Dispatcher struct {
	// Default receives packets nobody else handles.
	Default PacketHandler

	lock       sync.RWMutex
	byOpcode   map[Opcode]PacketHandler
	byCategory map[Category]PacketHandler
	unhandled  uint64
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		byOpcode:   make(map[Opcode]PacketHandler),
		byCategory: make(map[Category]PacketHandler),
	}
}

// Handle registers h for op, replacing any previous one. A nil h unregisters.
func (d *Dispatcher) Handle(op Opcode, h PacketHandler) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if h == nil {
		delete(d.byOpcode, op)
	} else {
		d.byOpcode[op] = h
	}
}

// HandleFunc registers a func for op.
func (d *Dispatcher) HandleFunc(op Opcode, fn func(context.Context, *Packet)) {
	d.Handle(op, HandlePacketFunc(fn))
}

// HandleCategory registers h for all opcodes in cat. A nil h unregisters.
func (d *Dispatcher) HandleCategory(cat Category, h PacketHandler) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if h == nil {
		delete(d.byCategory, cat)
	} else {
		d.byCategory[cat] = h
	}
}

// Unhandled returns the number of packets without a handler.
func (d *Dispatcher) Unhandled() uint64 {
	return atomic.LoadUint64(&d.unhandled)
}

// HandlerFor returns the handler for op, nil if none.
func (d *Dispatcher) HandlerFor(op Opcode) PacketHandler {
	d.lock.RLock()
	defer d.lock.RUnlock()
	if h := d.byOpcode[op]; h != nil {
		return h
	}
	if h := d.byCategory[op.Category()]; h != nil {
		return h
	}
	return d.Default
}

// HandlePacket implements PacketHandler.
func (d *Dispatcher) HandlePacket(ctx context.Context, pkt *Packet) {
	h := d.HandlerFor(pkt.Opcode())
	if h == nil {
		atomic.AddUint64(&d.unhandled, 1)
		glog.V(2).Infof("unhandled packet %s", pkt)
		return
	}
	h.HandlePacket(ctx, pkt)
}
