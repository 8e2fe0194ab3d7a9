package kb

import (
	"bytes"
	"fmt"
)

// KeyReportLen is the length of a keypress report.
const KeyReportLen = 8

// MMReportLen is the length of a multimedia report after its leading byte.
const MMReportLen = 4

// TouchFingerMax is the number of contacts the touchpad tracks.
const TouchFingerMax = 4

const (
	fingerLen        = 5
	touchHeaderLen   = 2
	touchReportMax   = touchHeaderLen + TouchFingerMax*fingerLen
	keyArrayStart    = 2
	firstUsableUsage = 4
)

// KeyReport is a keypress report: a leading byte, the modifier bitmap, then
// up to 6 pressed key usages.
type KeyReport [KeyReportLen]byte

// Modifiers returns the modifier bitmap.
func (r *KeyReport) Modifiers() byte {
	return r[1]
}

func (r *KeyReport) hasKey(usage byte) bool {
	return bytes.IndexByte(r[keyArrayStart:], usage) >= 0
}

// Held returns codes of all keys down in the report.
func (r *KeyReport) Held() (codes []uint16) {
	for i := uint(0); i < 8; i++ {
		if r[1]&(1<<i) != 0 {
			codes = append(codes, HIDKeyCodes[ModifierBase+i])
		}
	}
	for _, usage := range r[keyArrayStart:] {
		if usage >= firstUsableUsage && HIDKeyCodes[usage] != 0 {
			codes = append(codes, HIDKeyCodes[usage])
		}
	}
	return
}

func keyEvent(usage byte, down bool) (*KeyEvent, bool) {
	code := HIDKeyCodes[usage]
	if code == 0 {
		return nil, false
	}
	ev := &KeyEvent{Code: code, Down: down}
	if code == KeyUnknown {
		ev.Scan = uint32(usage)
	}
	return ev, true
}

// DiffKeyReports returns the key events turning prev into curr:
// modifier changes first, then releases and presses per slot.
func DiffKeyReports(prev, curr *KeyReport) (events []*KeyEvent) {
	if changed := prev[1] ^ curr[1]; changed != 0 {
		for i := uint(0); i < 8; i++ {
			if changed&(1<<i) != 0 {
				events = append(events, &KeyEvent{
					Code: HIDKeyCodes[ModifierBase+i],
					Down: curr[1]&(1<<i) != 0,
				})
			}
		}
	}
	for i := keyArrayStart; i < KeyReportLen; i++ {
		if usage := prev[i]; usage >= firstUsableUsage && !curr.hasKey(usage) {
			if ev, ok := keyEvent(usage, false); ok {
				events = append(events, ev)
			}
		}
		if usage := curr[i]; usage >= firstUsableUsage && !prev.hasKey(usage) {
			if ev, ok := keyEvent(usage, true); ok {
				events = append(events, ev)
			}
		}
	}
	return
}

// ParseKeyReport extracts the report from the arguments of a keypress packet.
func ParseKeyReport(args []byte) (r KeyReport, err error) {
	if len(args) < KeyReportLen {
		return r, fmt.Errorf("keypress: %w", ErrShortReport)
	}
	copy(r[:], args)
	return
}

// MMReport holds two consumer usages, little-endian.
type MMReport [MMReportLen]byte

// Usages returns the two usages.
func (r *MMReport) Usages() [2]uint16 {
	return [2]uint16{
		uint16(r[0]) | uint16(r[1])<<8,
		uint16(r[2]) | uint16(r[3])<<8,
	}
}

func (r *MMReport) hasUsage(usage uint16) bool {
	u := r.Usages()
	return u[0] == usage || u[1] == usage
}

func consumerEvent(usage uint16, down bool) (*KeyEvent, bool) {
	code, scan, ok := ConsumerKey(usage)
	if !ok {
		return nil, false
	}
	return &KeyEvent{Code: code, Scan: scan, Down: down}, true
}

// DiffMMReports returns the key events turning prev into curr.
// Usages without a mapping are skipped.
func DiffMMReports(prev, curr *MMReport) (events []*KeyEvent) {
	prevUsages, currUsages := prev.Usages(), curr.Usages()
	for i := range currUsages {
		if usage := prevUsages[i]; usage != 0 && !curr.hasUsage(usage) {
			if ev, ok := consumerEvent(usage, false); ok {
				events = append(events, ev)
			}
		}
		if usage := currUsages[i]; usage != 0 && !prev.hasUsage(usage) {
			if ev, ok := consumerEvent(usage, true); ok {
				events = append(events, ev)
			}
		}
	}
	return
}

// ParseMMReport extracts the report from the arguments of a multimedia packet.
func ParseMMReport(args []byte) (r MMReport, err error) {
	if len(args) < 1+MMReportLen {
		return r, fmt.Errorf("mmkey: %w", ErrShortReport)
	}
	copy(r[:], args[1:])
	return
}

// TouchReportBytes returns the significant part of a touch packet's
// arguments: length, buttons, then 5 bytes per finger.
func TouchReportBytes(args []byte) ([]byte, error) {
	if len(args) < touchHeaderLen {
		return nil, fmt.Errorf("touch: %w", ErrShortReport)
	}
	fingers := (int(args[0]) - 1) / fingerLen
	if fingers < 0 {
		fingers = 0
	}
	if fingers > TouchFingerMax {
		return nil, fmt.Errorf("touch: %d fingers: %w", fingers, ErrTooManyFingers)
	}
	n := touchHeaderLen + fingers*fingerLen
	if len(args) < n {
		return nil, fmt.Errorf("touch: %w", ErrShortReport)
	}
	return args[:n], nil
}

// ParseTouchReport decodes touch report bytes from TouchReportBytes.
func ParseTouchReport(data []byte) *TouchEvent {
	ev := &TouchEvent{
		Left:  data[1]&0x01 != 0,
		Right: data[1]&0x02 != 0,
	}
	for off := touchHeaderLen; off+fingerLen <= len(data); off += fingerLen {
		f := Finger{
			ID:   data[off] >> 4,
			Down: data[off]&0x01 != 0,
			X:    uint16(data[off+1]) | uint16(data[off+2])<<8,
			Y:    uint16(data[off+3]) | uint16(data[off+4])<<8,
		}
		if f.Down {
			ev.Active++
		}
		ev.Fingers = append(ev.Fingers, f)
	}
	return ev
}
