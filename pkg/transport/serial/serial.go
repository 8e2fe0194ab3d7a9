// Package serial opens the UART connected to the keyboard pack.
package serial

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Defaults.
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

// ErrNoPort indicates the port name is missing.
var ErrNoPort = errors.New("serial port not specified")

// Config specifies the serial port. The line is always 8N1.
type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// Validate checks the config and fills defaults.
func (c *Config) Validate() error {
	if c.Port == "" {
		return ErrNoPort
	}
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.BaudRate < 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	return nil
}

// Mode returns the line settings.
func (c *Config) Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Port is an open serial port.
// A Read timing out returns (0, nil).
type Port struct {
	serial.Port
	name string
}

// Open opens the port.
func Open(conf Config) (*Port, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	port, err := serial.Open(conf.Port, conf.Mode())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Port, err)
	}
	if err := port.SetReadTimeout(conf.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", conf.Port, err)
	}
	// drop whatever the accessory sent before we listened.
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("reset %s: %w", conf.Port, err)
	}
	return &Port{Port: port, name: conf.Port}, nil
}

// Name returns the port name.
func (p *Port) Name() string {
	return p.name
}

// List returns names of serial ports on the system.
func List() ([]string, error) {
	return serial.GetPortsList()
}
