package kb

import (
	"bytes"
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/owb.go/pkg/comm"
	fx "github.com/robotalks/owb.go/pkg/framework"
)

// Parameters of the set-param command.
const (
	ParamTouchpad          byte = 0x21
	ParamCapsLock          byte = 0x27
	ParamMute              byte = 0x28
	ParamMicMute           byte = 0x29
	ParamLEDs              byte = 0x2b
	ParamTouchpadAutoSleep byte = 0x33
	ParamSoftwarePower     byte = 0x36
)

// autoSleepDelay is sent along with enabling touchpad auto sleep.
const autoSleepDelay = 0x05

func onOff(on bool) byte {
	if on {
		return 1
	}
	return 0
}

// SetParam builds a set-param payload.
func SetParam(param byte, values ...byte) []byte {
	payload := make([]byte, 0, 4+len(values))
	payload = append(payload, byte(comm.OpSetParam), byte(len(values)+2), param, byte(len(values)))
	return append(payload, values...)
}

// CapsLockCommand builds the caps lock LED command.
func CapsLockCommand(on bool) []byte {
	return SetParam(ParamCapsLock, onOff(on))
}

// MuteCommand builds the mute LED command.
func MuteCommand(on bool) []byte {
	return SetParam(ParamMute, onOff(on))
}

// MicMuteCommand builds the mic mute LED command.
func MicMuteCommand(on bool) []byte {
	return SetParam(ParamMicMute, onOff(on))
}

// TouchpadCommand builds the touchpad enable command.
func TouchpadCommand(enabled bool) []byte {
	return SetParam(ParamTouchpad, onOff(enabled))
}

// TouchpadAutoSleepCommand builds the touchpad auto sleep command.
func TouchpadAutoSleepCommand(enabled bool) []byte {
	if enabled {
		return SetParam(ParamTouchpadAutoSleep, 1, autoSleepDelay)
	}
	return SetParam(ParamTouchpadAutoSleep, 0, 0)
}

// LEDsCommand builds the command setting all LEDs at once.
func LEDsCommand(capsLock, mute, micMute bool) []byte {
	return SetParam(ParamLEDs, onOff(capsLock), 0, onOff(mute), onOff(micMute))
}

// SoftwarePowerCommand builds the software power command and the reply
// acknowledging it. The argument is 0 for power on.
func SoftwarePowerCommand(on bool) (cmd, ack []byte) {
	cmd = SetParam(ParamSoftwarePower, onOff(!on))
	ack = append([]byte{byte(comm.OpSetParamResp)}, cmd[1:]...)
	return
}

func (d *Device) write(ctx context.Context, name string, payload []byte) error {
	if _, err := d.link.Transfer(ctx, payload, false); err != nil {
		glog.Errorf("%s: %v", name, err)
		return err
	}
	glog.V(1).Infof("%s ok", name)
	return nil
}

// update changes the status and tells whether LED commands can be sent.
func (d *Device) update(fn func(*Status)) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	fn(&d.status)
	return d.status.ready()
}

// setLED records an LED state and sends it when the accessory is ready.
func (d *Device) setLED(ctx context.Context, name string, fn func(*Status), payload []byte) error {
	ready := d.update(fn)
	d.emitStatus(ctx)
	if !ready {
		glog.V(1).Infof("%s deferred", name)
		return nil
	}
	return d.write(ctx, name, payload)
}

// SetCapsLock sets the caps lock LED.
func (d *Device) SetCapsLock(ctx context.Context, on bool) error {
	return d.setLED(ctx, "caps lock", func(s *Status) { s.CapsLock = on }, CapsLockCommand(on))
}

// SetMute sets the mute LED.
func (d *Device) SetMute(ctx context.Context, on bool) error {
	return d.setLED(ctx, "mute", func(s *Status) { s.Mute = on }, MuteCommand(on))
}

// SetMicMute sets the mic mute LED.
func (d *Device) SetMicMute(ctx context.Context, on bool) error {
	return d.setLED(ctx, "mic mute", func(s *Status) { s.MicMute = on }, MicMuteCommand(on))
}

// EnableTouchpad enables or disables the touchpad.
func (d *Device) EnableTouchpad(ctx context.Context, enabled bool) error {
	d.update(func(s *Status) { s.TouchpadEnabled = enabled })
	d.emitStatus(ctx)
	return d.write(ctx, "touchpad", TouchpadCommand(enabled))
}

// SetTouchpadAutoSleep turns touchpad auto sleep on or off.
func (d *Device) SetTouchpadAutoSleep(ctx context.Context, enabled bool) error {
	d.update(func(s *Status) { s.TouchpadAutoSleep = enabled })
	d.emitStatus(ctx)
	return d.write(ctx, "touchpad auto sleep", TouchpadAutoSleepCommand(enabled))
}

// RestoreLEDs sends all LED states in one command.
func (d *Device) RestoreLEDs(ctx context.Context) error {
	s := d.Status()
	return d.write(ctx, "restore leds", LEDsCommand(s.CapsLock, s.Mute, s.MicMute))
}

// RestoreSettings brings a freshly reset accessory back to the recorded status.
func (d *Device) RestoreSettings(ctx context.Context) error {
	s := d.Status()
	errs := &fx.AggregatedError{}
	if s.ready() {
		errs.Add(d.RestoreLEDs(ctx))
	}
	if s.TouchpadAutoSleep {
		errs.Add(d.write(ctx, "touchpad auto sleep", TouchpadAutoSleepCommand(true)))
	}
	return errs.Aggregate()
}

// SetSoftwarePower turns the accessory on or off and verifies the reply.
func (d *Device) SetSoftwarePower(ctx context.Context, on bool) error {
	cmd, ack := SoftwarePowerCommand(on)
	var err error
	for i := 0; i < PowerAttempts; i++ {
		var reply []byte
		if reply, err = d.link.Transfer(ctx, cmd, true); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			continue
		}
		if bytes.Equal(reply, ack) {
			glog.Infof("software power on=%v ok", on)
			return nil
		}
		err = &UnexpectedReplyError{Want: ack, Got: reply}
	}
	glog.Errorf("software power on=%v: %v", on, err)
	return err
}

// SetDisplay follows the host display: the accessory is powered down with
// the display and restored when it comes back.
func (d *Device) SetDisplay(ctx context.Context, on bool) error {
	connected := d.Status().Connected
	d.update(func(s *Status) { s.DisplayOn = on })
	defer d.emitStatus(ctx)
	if !on {
		var err error
		if connected {
			err = d.SetSoftwarePower(ctx, false)
		}
		d.ReleaseKeys(ctx)
		return err
	}
	if !connected {
		return nil
	}
	return (&fx.AggregatedError{}).
		Add(d.SetSoftwarePower(ctx, true)).
		Add(d.RestoreLEDs(ctx)).
		Aggregate()
}
