package kb

import (
	"bytes"
	"context"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/owb.go/pkg/comm"
)

// PowerAttempts is how many times the software power command is tried.
const PowerAttempts = 3

// Transferer performs command exchanges with the accessory.
// It's implemented by *comm.Client.
type Transferer interface {
	Transfer(ctx context.Context, payload []byte, wantReply bool) ([]byte, error)
}

// Status is the host side view of the accessory.
type Status struct {
	Connected         bool `json:"connected"`
	DisplayOn         bool `json:"display_on"`
	CapsLock          bool `json:"caps_lock"`
	Mute              bool `json:"mute"`
	MicMute           bool `json:"mic_mute"`
	TouchpadEnabled   bool `json:"touchpad_enabled"`
	TouchpadAutoSleep bool `json:"touchpad_auto_sleep"`
	KeyboardEnabled   bool `json:"keyboard_enabled"`
	// FwUpdateReset is set after a firmware update until the accessory
	// comes back.
	FwUpdateReset bool `json:"fw_update_reset"`
}

// ready tells whether LED commands can be sent.
func (s *Status) ready() bool {
	return s.Connected && s.DisplayOn
}

// Device models the keyboard pack on top of a link.
// Packet handlers never block: commands they trigger run on Run.
type Device struct {
	Sink EventSink
	// OnConnect is invoked on Run when the accessory shows up.
	OnConnect func(context.Context, *Device)

	link   Transferer
	workCh chan func(context.Context)

	lock   sync.Mutex
	status Status
	keys   KeyReport
	mm     MMReport
	touch  []byte
}

// NewDevice creates a Device sending commands over link.
func NewDevice(link Transferer) *Device {
	return &Device{
		link:   link,
		workCh: make(chan func(context.Context), 16),
		status: Status{DisplayOn: true, KeyboardEnabled: true},
		touch:  make([]byte, 0, touchReportMax),
	}
}

// Register installs the packet handlers.
func (d *Device) Register(disp *comm.Dispatcher) {
	disp.HandleFunc(comm.OpKeypress, d.handleKeypress)
	disp.HandleFunc(comm.OpMMKey, d.handleMMKey)
	disp.HandleFunc(comm.OpTouch, d.handleTouch)
	disp.HandleFunc(comm.OpKbDisableStatus, d.handleKbDisable)
	disp.HandleFunc(comm.OpSyncUplink, d.handleSync)
	disp.HandleFunc(comm.OpEndFwUpdateResp, d.handleEndFwUpdate)
}

// Status returns a snapshot of the status.
func (d *Device) Status() Status {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.status
}

// Run executes queued work until ctx is done.
func (d *Device) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-d.workCh:
			fn(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Device) queue(name string, fn func(context.Context)) {
	select {
	case d.workCh <- fn:
	default:
		glog.Warningf("work queue full, drop %s", name)
	}
}

func (d *Device) emit(ctx context.Context, ev Event) {
	if s := d.Sink; s != nil {
		s.Emit(ctx, ev)
	}
}

func (d *Device) emitStatus(ctx context.Context) {
	d.emit(ctx, &StatusEvent{Status: d.Status()})
}

func (d *Device) handleKeypress(ctx context.Context, pkt *comm.Packet) {
	report, err := ParseKeyReport(pkt.Args())
	if err != nil {
		glog.Warningf("drop %s: %v", pkt, err)
		return
	}
	d.lock.Lock()
	events := DiffKeyReports(&d.keys, &report)
	d.keys = report
	d.lock.Unlock()
	for _, ev := range events {
		if glog.V(2) {
			glog.Infof("key %d down=%v", ev.Code, ev.Down)
		}
		d.emit(ctx, ev)
	}
}

func (d *Device) handleMMKey(ctx context.Context, pkt *comm.Packet) {
	report, err := ParseMMReport(pkt.Args())
	if err != nil {
		glog.Warningf("drop %s: %v", pkt, err)
		return
	}
	d.lock.Lock()
	events := DiffMMReports(&d.mm, &report)
	d.mm = report
	d.lock.Unlock()
	for _, ev := range events {
		d.emit(ctx, ev)
	}
}

func (d *Device) handleTouch(ctx context.Context, pkt *comm.Packet) {
	data, err := TouchReportBytes(pkt.Args())
	if err != nil {
		glog.Warningf("drop %s: %v", pkt, err)
		return
	}
	d.lock.Lock()
	repeated := bytes.Equal(d.touch, data)
	if !repeated {
		d.touch = append(d.touch[:0], data...)
	}
	d.lock.Unlock()
	if repeated {
		glog.V(3).Info("touch data repeat")
		return
	}
	d.emit(ctx, ParseTouchReport(data))
}

func (d *Device) handleKbDisable(ctx context.Context, pkt *comm.Packet) {
	if len(pkt.Data) < 5 {
		return
	}
	enabled := pkt.Data[4] != 0
	glog.Infof("keyboard enabled: %v", enabled)
	d.lock.Lock()
	d.status.KeyboardEnabled = enabled
	d.lock.Unlock()
	d.emit(ctx, &KeyboardEnableEvent{Enabled: enabled})
}

func (d *Device) handleSync(ctx context.Context, pkt *comm.Packet) {
	d.lock.Lock()
	connecting := !d.status.Connected
	d.status.Connected = true
	restore := d.status.FwUpdateReset && len(pkt.Data) > 2 && pkt.Data[2] == 0x03
	if restore {
		d.status.FwUpdateReset = false
	}
	d.lock.Unlock()

	if connecting {
		glog.Info("accessory connected")
		d.emit(ctx, &ConnectEvent{Connected: true})
		d.emitStatus(ctx)
		if fn := d.OnConnect; fn != nil {
			d.queue("connect", func(ctx context.Context) { fn(ctx, d) })
		}
	}
	if restore {
		glog.Info("new firmware ready, restore settings")
		d.queue("restore", func(ctx context.Context) {
			if err := d.RestoreSettings(ctx); err != nil {
				glog.Errorf("restore settings: %v", err)
			}
		})
	}
}

func (d *Device) handleEndFwUpdate(ctx context.Context, pkt *comm.Packet) {
	if len(pkt.Data) > 2 && pkt.Data[2] == 0x03 {
		// the accessory resets itself after the update.
		d.lock.Lock()
		d.status.FwUpdateReset = true
		d.lock.Unlock()
	}
}

// Disconnect marks the accessory gone and releases held keys.
func (d *Device) Disconnect(ctx context.Context) {
	d.lock.Lock()
	wasConnected := d.status.Connected
	d.status.Connected = false
	d.lock.Unlock()
	d.ReleaseKeys(ctx)
	if wasConnected {
		glog.Info("accessory disconnected")
		d.emit(ctx, &ConnectEvent{Connected: false})
		d.emitStatus(ctx)
	}
}

// ReleaseKeys emits key up for every key held and forgets the reports.
func (d *Device) ReleaseKeys(ctx context.Context) {
	var empty KeyReport
	var emptyMM MMReport
	d.lock.Lock()
	events := DiffKeyReports(&d.keys, &empty)
	events = append(events, DiffMMReports(&d.mm, &emptyMM)...)
	d.keys, d.mm = empty, emptyMM
	d.lock.Unlock()
	for _, ev := range events {
		d.emit(ctx, ev)
	}
}
