package kb

import (
	"context"
	"sync"
)

// Event kinds.
const (
	KindKey      = "key"
	KindTouch    = "touch"
	KindKbEnable = "kb-enable"
	KindConnect  = "connect"
	KindStatus   = "status"
)

// Event is emitted by Device.
type Event interface {
	Kind() string
}

// KeyEvent reports a key going down or up.
type KeyEvent struct {
	// Code is the Linux input key code, KeyUnknown for vendor keys.
	Code uint16 `json:"code"`
	// Scan is the vendor scan code when Code is KeyUnknown.
	Scan uint32 `json:"scan,omitempty"`
	Down bool   `json:"down"`
}

// Kind implements Event.
func (e *KeyEvent) Kind() string { return KindKey }

// Finger is a contact on the touchpad.
type Finger struct {
	ID   uint8  `json:"id"`
	Down bool   `json:"down"`
	X    uint16 `json:"x"`
	Y    uint16 `json:"y"`
}

// TouchEvent is a touchpad frame.
type TouchEvent struct {
	Left    bool     `json:"left"`
	Right   bool     `json:"right"`
	Fingers []Finger `json:"fingers"`
	// Active counts fingers down.
	Active int `json:"active"`
}

// Kind implements Event.
func (e *TouchEvent) Kind() string { return KindTouch }

// KeyboardEnableEvent reports the keyboard being enabled or disabled,
// e.g. when folded behind the tablet.
type KeyboardEnableEvent struct {
	Enabled bool `json:"enabled"`
}

// Kind implements Event.
func (e *KeyboardEnableEvent) Kind() string { return KindKbEnable }

// ConnectEvent reports the accessory attaching or detaching.
type ConnectEvent struct {
	Connected bool `json:"connected"`
}

// Kind implements Event.
func (e *ConnectEvent) Kind() string { return KindConnect }

// StatusEvent carries the full device status after a change.
type StatusEvent struct {
	Status
}

// Kind implements Event.
func (e *StatusEvent) Kind() string { return KindStatus }

// EventSink receives events.
type EventSink interface {
	Emit(context.Context, Event)
}

// EmitFunc is func type of EventSink.
type EmitFunc func(context.Context, Event)

// Emit implements EventSink.
func (f EmitFunc) Emit(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// MultiSink fans out events.
type MultiSink struct {
	lock  sync.RWMutex
	sinks []EventSink
}

// Add adds sinks.
func (m *MultiSink) Add(sinks ...EventSink) *MultiSink {
	m.lock.Lock()
	m.sinks = append(m.sinks, sinks...)
	m.lock.Unlock()
	return m
}

// Emit implements EventSink.
func (m *MultiSink) Emit(ctx context.Context, ev Event) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	for _, s := range m.sinks {
		s.Emit(ctx, ev)
	}
}

// ChanSink delivers events to a chan, dropping them when it's full.
type ChanSink chan Event

// Emit implements EventSink.
func (s ChanSink) Emit(ctx context.Context, ev Event) {
	select {
	case s <- ev:
	default:
	}
}
