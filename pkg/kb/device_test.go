package kb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/owb.go/pkg/comm"
)

// fakeLink acknowledges every command unless reply is set.
type fakeLink struct {
	lock  sync.Mutex
	sent  [][]byte
	reply func(payload []byte) ([]byte, error)
	sendC chan []byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{sendC: make(chan []byte, 16)}
}

func (l *fakeLink) Transfer(ctx context.Context, payload []byte, wantReply bool) ([]byte, error) {
	data := append([]byte(nil), payload...)
	l.lock.Lock()
	l.sent = append(l.sent, data)
	fn := l.reply
	l.lock.Unlock()
	select {
	case l.sendC <- data:
	default:
	}
	if fn != nil {
		return fn(data)
	}
	if !wantReply {
		return nil, nil
	}
	return append([]byte{byte(comm.OpSetParamResp)}, data[1:]...), nil
}

func (l *fakeLink) commands() [][]byte {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.sent
}

func (l *fakeLink) expectSent(t *testing.T, payload []byte) {
	select {
	case data := <-l.sendC:
		require.Equal(t, payload, data)
	case <-time.After(time.Second):
		t.Fatalf("expect sent % x timeout", payload)
	}
}

type deviceTestEnv struct {
	t      *testing.T
	link   *fakeLink
	dev    *Device
	disp   *comm.Dispatcher
	events ChanSink
}

func newDeviceTestEnv(t *testing.T) *deviceTestEnv {
	e := &deviceTestEnv{
		t:      t,
		link:   newFakeLink(),
		disp:   comm.NewDispatcher(),
		events: make(ChanSink, 64),
	}
	e.dev = NewDevice(e.link)
	e.dev.Sink = e.events
	e.dev.Register(e.disp)
	return e
}

func (e *deviceTestEnv) run() func() {
	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	go func() {
		e.dev.Run(ctx)
		close(doneCh)
	}()
	return func() {
		cancel()
		<-doneCh
	}
}

func (e *deviceTestEnv) feed(data ...byte) *deviceTestEnv {
	e.disp.HandlePacket(context.Background(), &comm.Packet{Data: data})
	return e
}

func (e *deviceTestEnv) next() Event {
	select {
	case ev := <-e.events:
		return ev
	case <-time.After(time.Second):
		e.t.Fatal("expect event timeout")
	}
	return nil
}

func (e *deviceTestEnv) expect(ev Event) *deviceTestEnv {
	require.Equal(e.t, ev, e.next())
	return e
}

// expectStatus skips events until a status event shows up.
func (e *deviceTestEnv) expectStatus(check func(Status)) *deviceTestEnv {
	for {
		if ev, ok := e.next().(*StatusEvent); ok {
			check(ev.Status)
			return e
		}
	}
}

func (e *deviceTestEnv) noEvent() *deviceTestEnv {
	select {
	case ev := <-e.events:
		e.t.Fatalf("unexpected event %#v", ev)
	default:
	}
	return e
}

func (e *deviceTestEnv) connect() *deviceTestEnv {
	e.feed(byte(comm.OpSyncUplink), 0x03, 0x01)
	for {
		if ev, ok := e.next().(*ConnectEvent); ok {
			require.True(e.t, ev.Connected)
			break
		}
	}
	return e.expectStatus(func(s Status) { require.True(e.t, s.Connected) })
}

func TestDeviceInput(t *testing.T) {
	env := newDeviceTestEnv(t)
	env.feed(byte(comm.OpKeypress), 0, 0x02, 0x04, 0, 0, 0, 0, 0).
		expect(&KeyEvent{Code: 42, Down: true}).
		expect(&KeyEvent{Code: 30, Down: true}).
		feed(byte(comm.OpKeypress), 0, 0x02, 0x04, 0, 0, 0, 0, 0).
		noEvent().
		feed(byte(comm.OpKeypress), 0, 0x02).
		noEvent().
		feed(byte(comm.OpMMKey), 0x03, 0xea, 0, 0, 0).
		expect(&KeyEvent{Code: KeyVolumeDown, Down: true})

	touch := []byte{byte(comm.OpTouch), 6, 0, 0x01, 10, 0, 20, 0, 0xaa}
	env.feed(touch...).
		expect(&TouchEvent{Fingers: []Finger{{ID: 0, Down: true, X: 10, Y: 20}}, Active: 1}).
		feed(touch[:len(touch)-1]...).
		noEvent().
		feed(byte(comm.OpTouch), 6, 0, 0x00, 10, 0, 20, 0).
		expect(&TouchEvent{Fingers: []Finger{{ID: 0, Down: false, X: 10, Y: 20}}})

	env.feed(byte(comm.OpKbDisableStatus), 0x04, 0x01, 0x01, 0x00).
		expect(&KeyboardEnableEvent{Enabled: false})
	require.False(t, env.dev.Status().KeyboardEnabled)

	env.dev.Disconnect(context.Background())
	env.expect(&KeyEvent{Code: 42, Down: false}).
		expect(&KeyEvent{Code: 30, Down: false}).
		expect(&KeyEvent{Code: KeyVolumeDown, Down: false}).
		noEvent()
}

func TestDeviceConnect(t *testing.T) {
	env := newDeviceTestEnv(t)
	connectCh := make(chan struct{}, 1)
	env.dev.OnConnect = func(ctx context.Context, d *Device) {
		connectCh <- struct{}{}
	}
	stop := env.run()
	defer stop()

	env.connect()
	select {
	case <-connectCh:
	case <-time.After(time.Second):
		t.Fatal("OnConnect not invoked")
	}
	// already connected.
	env.feed(byte(comm.OpSyncUplink), 0x03, 0x01).noEvent()

	env.dev.Disconnect(context.Background())
	env.expect(&ConnectEvent{Connected: false})
	require.False(t, env.dev.Status().Connected)
}

func TestDeviceFirmwareUpdateRestore(t *testing.T) {
	env := newDeviceTestEnv(t)
	stop := env.run()
	defer stop()

	env.connect()
	require.NoError(t, env.dev.SetMute(context.Background(), true))
	env.link.expectSent(t, MuteCommand(true))
	require.NoError(t, env.dev.SetTouchpadAutoSleep(context.Background(), true))
	env.link.expectSent(t, TouchpadAutoSleepCommand(true))

	env.feed(byte(comm.OpEndFwUpdateResp), 0x01, 0x03)
	require.True(t, env.dev.Status().FwUpdateReset)
	env.feed(byte(comm.OpSyncUplink), 0x03, 0x03)
	env.link.expectSent(t, LEDsCommand(false, true, false))
	env.link.expectSent(t, TouchpadAutoSleepCommand(true))
	require.False(t, env.dev.Status().FwUpdateReset)
}

func TestDeviceLEDDeferred(t *testing.T) {
	env := newDeviceTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.dev.SetCapsLock(ctx, true))
	require.NoError(t, env.dev.SetMicMute(ctx, true))
	require.Empty(t, env.link.commands())
	s := env.dev.Status()
	require.True(t, s.CapsLock)
	require.True(t, s.MicMute)

	env.connect()
	require.NoError(t, env.dev.RestoreSettings(ctx))
	require.Equal(t, [][]byte{LEDsCommand(true, false, true)}, env.link.commands())

	require.NoError(t, env.dev.SetCapsLock(ctx, false))
	require.Equal(t, CapsLockCommand(false), env.link.commands()[1])
}

func TestDeviceSoftwarePower(t *testing.T) {
	ctx := context.Background()
	t.Run("ack", func(t *testing.T) {
		env := newDeviceTestEnv(t)
		require.NoError(t, env.dev.SetSoftwarePower(ctx, false))
		require.Equal(t, [][]byte{{0x6a, 0x03, 0x36, 0x01, 0x01}}, env.link.commands())
	})
	t.Run("unexpected reply", func(t *testing.T) {
		env := newDeviceTestEnv(t)
		env.link.reply = func([]byte) ([]byte, error) {
			return []byte{0x6b, 0x03, 0x36, 0x01, 0xff}, nil
		}
		err := env.dev.SetSoftwarePower(ctx, true)
		require.Error(t, err)
		unexpected, ok := err.(*UnexpectedReplyError)
		require.True(t, ok)
		require.Equal(t, []byte{0x6b, 0x03, 0x36, 0x01, 0x00}, unexpected.Want)
		require.Len(t, env.link.commands(), PowerAttempts)
	})
	t.Run("transfer error", func(t *testing.T) {
		env := newDeviceTestEnv(t)
		errFail := errors.New("fail")
		calls := 0
		env.link.reply = func([]byte) ([]byte, error) {
			calls++
			if calls < PowerAttempts {
				return nil, errFail
			}
			return []byte{0x6b, 0x03, 0x36, 0x01, 0x00}, nil
		}
		require.NoError(t, env.dev.SetSoftwarePower(ctx, true))
		require.Equal(t, PowerAttempts, calls)
	})
	t.Run("canceled", func(t *testing.T) {
		env := newDeviceTestEnv(t)
		cctx, cancel := context.WithCancel(ctx)
		env.link.reply = func([]byte) ([]byte, error) {
			cancel()
			return nil, context.Canceled
		}
		require.Equal(t, context.Canceled, env.dev.SetSoftwarePower(cctx, true))
		require.Len(t, env.link.commands(), 1)
	})
}

func TestDeviceDisplay(t *testing.T) {
	env := newDeviceTestEnv(t)
	ctx := context.Background()
	env.connect()
	env.feed(byte(comm.OpKeypress), 0, 0, 0x04, 0, 0, 0, 0, 0).
		expect(&KeyEvent{Code: 30, Down: true})

	require.NoError(t, env.dev.SetDisplay(ctx, false))
	env.expect(&KeyEvent{Code: 30, Down: false}).
		expectStatus(func(s Status) { require.False(t, s.DisplayOn) })
	require.NoError(t, env.dev.SetMute(ctx, true))
	require.Equal(t, [][]byte{{0x6a, 0x03, 0x36, 0x01, 0x01}}, env.link.commands())

	require.NoError(t, env.dev.SetDisplay(ctx, true))
	require.Equal(t, [][]byte{
		{0x6a, 0x03, 0x36, 0x01, 0x01},
		{0x6a, 0x03, 0x36, 0x01, 0x00},
		LEDsCommand(false, true, false),
	}, env.link.commands())
}

func TestCommands(t *testing.T) {
	power, ack := SoftwarePowerCommand(true)
	tests := []struct {
		name    string
		payload []byte
		expect  []byte
	}{
		{"caps lock on", CapsLockCommand(true), []byte{0x6a, 0x03, 0x27, 0x01, 0x01}},
		{"mute off", MuteCommand(false), []byte{0x6a, 0x03, 0x28, 0x01, 0x00}},
		{"mic mute on", MicMuteCommand(true), []byte{0x6a, 0x03, 0x29, 0x01, 0x01}},
		{"touchpad on", TouchpadCommand(true), []byte{0x6a, 0x03, 0x21, 0x01, 0x01}},
		{"auto sleep on", TouchpadAutoSleepCommand(true), []byte{0x6a, 0x04, 0x33, 0x02, 0x01, 0x05}},
		{"auto sleep off", TouchpadAutoSleepCommand(false), []byte{0x6a, 0x04, 0x33, 0x02, 0x00, 0x00}},
		{"leds", LEDsCommand(true, false, true), []byte{0x6a, 0x06, 0x2b, 0x04, 0x01, 0x00, 0x00, 0x01}},
		{"power on", power, []byte{0x6a, 0x03, 0x36, 0x01, 0x00}},
		{"power on ack", ack, []byte{0x6b, 0x03, 0x36, 0x01, 0x00}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expect, test.payload)
		})
	}
}
