package sh

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/owb.go/pkg/comm"
	"github.com/robotalks/owb.go/pkg/kb"
	"github.com/robotalks/owb.go/pkg/transport/serial"
)

// CommandTimeout bounds a single shell command.
const CommandTimeout = 5 * time.Second

// CmdFunc executes a command and returns the result to print.
type CmdFunc func(ctx context.Context, conn *Conn, args []string) (interface{}, error)

// DeviceCmd creates a command which requires a connection.
func DeviceCmd(name, help string, fn CmdFunc) *ishell.Cmd {
	return &ishell.Cmd{
		Name: name,
		Help: help,
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if s.Conn == nil {
				c.Err(fmt.Errorf("not connected"))
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
			defer cancel()
			result, err := fn(ctx, s.Conn, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			s.Output(c, result)
		},
	}
}

// OK is the result of a command without output.
type OK struct {
	OK bool `json:"ok"`
}

// String implements fmt.Stringer.
func (OK) String() string {
	return "OK"
}

// Reply is the result of a query.
type Reply struct {
	Reply string `json:"reply"`
}

// String implements fmt.Stringer.
func (r *Reply) String() string {
	data, _ := hex.DecodeString(r.Reply)
	pkt := &comm.Packet{Data: data}
	return pkt.String()
}

// StatsResult is the result of the stats command.
type StatsResult struct {
	comm.Stats
	Unhandled uint64 `json:"unhandled"`
}

func formatResult(result interface{}) string {
	if s, ok := result.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%+v", result)
}

// ParseHex parses a payload from hex arguments, e.g. "6a 03 27" or "6a0327".
func ParseHex(args []string) ([]byte, error) {
	data, err := hex.DecodeString(strings.Join(args, ""))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, comm.ErrEmptyPayload
	}
	return data, nil
}

// ParseOnOff parses a switch argument.
func ParseOnOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("expect on or off")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return strconv.ParseBool(args[0])
}

// switchCmd creates a command turning something on or off.
func switchCmd(name, help string, fn func(*kb.Device, context.Context, bool) error) *ishell.Cmd {
	return DeviceCmd(name, "on|off: "+help, func(ctx context.Context, conn *Conn, args []string) (interface{}, error) {
		on, err := ParseOnOff(args)
		if err != nil {
			return nil, err
		}
		if err := fn(conn.Env.Device, ctx, on); err != nil {
			return nil, err
		}
		return OK{true}, nil
	})
}

func sendCmd(ctx context.Context, conn *Conn, args []string) (interface{}, error) {
	payload, err := ParseHex(args)
	if err != nil {
		return nil, err
	}
	if err := conn.Env.Client.Write(ctx, payload); err != nil {
		return nil, err
	}
	return OK{true}, nil
}

func queryCmd(ctx context.Context, conn *Conn, args []string) (interface{}, error) {
	payload, err := ParseHex(args)
	if err != nil {
		return nil, err
	}
	reply, err := conn.Env.Client.Query(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &Reply{Reply: hex.EncodeToString(reply)}, nil
}

func restoreCmd(ctx context.Context, conn *Conn, args []string) (interface{}, error) {
	if err := conn.Env.Device.RestoreSettings(ctx); err != nil {
		return nil, err
	}
	return OK{true}, nil
}

func statusCmd(ctx context.Context, conn *Conn, args []string) (interface{}, error) {
	status := conn.Env.Device.Status()
	return &status, nil
}

func statsCmd(ctx context.Context, conn *Conn, args []string) (interface{}, error) {
	return &StatsResult{
		Stats:     conn.Env.FIFO.Stats(),
		Unhandled: conn.Env.Client.Dispatcher().Unhandled(),
	}, nil
}

// EventRecord is an event printed by the events command.
type EventRecord struct {
	Kind  string   `json:"kind"`
	Event kb.Event `json:"event"`
}

// String implements fmt.Stringer.
func (r *EventRecord) String() string {
	return fmt.Sprintf("%s %+v", r.Kind, r.Event)
}

func eventsCmd(ctx context.Context, conn *Conn, args []string) (interface{}, error) {
	records := []*EventRecord{}
	for {
		select {
		case ev := <-conn.Events:
			records = append(records, &EventRecord{Kind: ev.Kind(), Event: ev})
		default:
			return records, nil
		}
	}
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ports, err := serial.List()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if ports == nil {
					ports = []string{}
				}
				s.Output(c, ports)
				return
			}
			if len(ports) == 0 {
				c.Println("No serial ports found")
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}

	// ConnectCmd connects the keyboard pack.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[PORT]",
		Func: func(c *ishell.Context) {
			var port string
			if len(c.Args) > 0 {
				port = c.Args[0]
			}
			if err := ShellFrom(c).Connect(port); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects the keyboard pack.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

func init() {
	AddCmds(
		DeviceCmd("send", "HEX: send a raw packet and wait for the loopback", sendCmd),
		DeviceCmd("query", "HEX: send a raw packet and print the reply", queryCmd),
		switchCmd("caps", "caps lock LED", (*kb.Device).SetCapsLock),
		switchCmd("mute", "mute LED", (*kb.Device).SetMute),
		switchCmd("micmute", "mic mute LED", (*kb.Device).SetMicMute),
		switchCmd("touchpad", "enable touchpad", (*kb.Device).EnableTouchpad),
		switchCmd("autosleep", "touchpad auto sleep", (*kb.Device).SetTouchpadAutoSleep),
		switchCmd("power", "software power", (*kb.Device).SetSoftwarePower),
		switchCmd("display", "follow the host display", (*kb.Device).SetDisplay),
		DeviceCmd("restore", "resend recorded settings", restoreCmd),
		DeviceCmd("status", "print device status", statusCmd),
		DeviceCmd("stats", "print link counters", statsCmd),
		DeviceCmd("events", "print events received since last time", eventsCmd),
	)
}
