package env

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/owb.go/pkg/bridge/mqtt"
	"github.com/robotalks/owb.go/pkg/bridge/websocket"
	"github.com/robotalks/owb.go/pkg/comm"
	fx "github.com/robotalks/owb.go/pkg/framework"
	"github.com/robotalks/owb.go/pkg/kb"
	"github.com/robotalks/owb.go/pkg/ppp"
	"github.com/robotalks/owb.go/pkg/transport/serial"
)

// Config provides options to setup the keyboard pack stack.
type Config struct {
	// ID names the device on MQTT.
	ID     string
	Serial serial.Config
	// ChecksumWire selects the checksum over escaped bytes.
	ChecksumWire bool

	Timeout        time.Duration
	Retries        int
	RetryDelay     time.Duration
	ReconnectDelay time.Duration

	// MQTTBrokerURL specifies the MQTT broker to use, empty to disable.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// WebSocketAddr is the listen address of the event monitor, empty to disable.
	WebSocketAddr string
}

var defaultConfig = Config{
	Serial: serial.Config{
		Port:        "/dev/ttyHS1",
		BaudRate:    serial.DefaultBaudRate,
		ReadTimeout: serial.DefaultReadTimeout,
	},
	Timeout:        comm.DefaultTimeout,
	Retries:        comm.DefaultRetries,
	RetryDelay:     comm.DefaultRetryDelay,
	ReconnectDelay: 2 * time.Second,
}

func init() {
	loadEnv(&defaultConfig, os.Getenv)
	if defaultConfig.ID == "" {
		defaultConfig.ID = MachineID()
	}
}

func loadEnv(conf *Config, getenv func(string) string) {
	if val := getenv("OWB_ID"); val != "" {
		conf.ID = val
	}
	if val := getenv("OWB_SERIAL_PORT"); val != "" {
		conf.Serial.Port = val
	}
	if val := getenv("OWB_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			conf.Serial.BaudRate = baud
		}
	}
	if val := getenv("OWB_MQTT_URL"); val != "" {
		conf.MQTTBrokerURL = val
	}
	if val := getenv("OWB_WS_ADDR"); val != "" {
		conf.WebSocketAddr = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	setupFlags(flag.CommandLine, &defaultConfig)
}

func setupFlags(fs *flag.FlagSet, conf *Config) {
	fs.StringVar(&conf.ID, "id", conf.ID, "Device ID")
	fs.StringVar(&conf.Serial.Port, "port", conf.Serial.Port, "Serial port of the keyboard pack")
	fs.IntVar(&conf.Serial.BaudRate, "baud", conf.Serial.BaudRate, "Serial baud rate")
	fs.BoolVar(&conf.ChecksumWire, "checksum-wire", conf.ChecksumWire, "Checksum escaped bytes, for older firmware")
	fs.DurationVar(&conf.Timeout, "timeout", conf.Timeout, "Wait for loopback and reply")
	fs.IntVar(&conf.Retries, "retries", conf.Retries, "Command attempts")
	fs.DurationVar(&conf.RetryDelay, "retry-delay", conf.RetryDelay, "Delay between command attempts")
	fs.DurationVar(&conf.ReconnectDelay, "reconnect-delay", conf.ReconnectDelay, "Delay before reopening the serial port")
	fs.StringVar(&conf.MQTTBrokerURL, "mqtt", conf.MQTTBrokerURL, "MQTT broker URL")
	fs.StringVar(&conf.WebSocketAddr, "ws", conf.WebSocketAddr, "Event monitor listen address")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Codec returns the frame codec.
func (c *Config) Codec() ppp.Codec {
	if c.ChecksumWire {
		return ppp.Codec{Checksum: ppp.ChecksumWire}
	}
	return ppp.DefaultCodec
}

// PortOpener opens the serial port.
type PortOpener func(serial.Config) (io.ReadWriteCloser, error)

func openSerial(conf serial.Config) (io.ReadWriteCloser, error) {
	port, err := serial.Open(conf)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Env wires the stack: serial port, link, device and bridges.
type Env struct {
	Config *Config
	Link   *Link
	FIFO   *comm.FIFO
	Client *comm.Client
	Device *kb.Device
	Sinks  *kb.MultiSink

	Publisher *mqtt.Publisher
	Monitor   *websocket.Server

	// OpenPort opens the serial port, replaceable for tests.
	OpenPort PortOpener
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("device ID must be specified")
	}
	if err := c.Serial.Validate(); err != nil {
		return nil, err
	}
	e := &Env{
		Config:   c,
		Link:     &Link{},
		Sinks:    &kb.MultiSink{},
		OpenPort: openSerial,
	}
	e.FIFO = comm.NewFIFO(e.Link)
	e.FIFO.Codec = c.Codec()
	e.Client = comm.NewClient(e.FIFO)
	e.Client.Timeout = c.Timeout
	e.Client.Retries = c.Retries
	e.Client.RetryDelay = c.RetryDelay
	e.Device = kb.NewDevice(e.Client)
	e.Device.Sink = e.Sinks
	e.Device.OnConnect = func(ctx context.Context, d *kb.Device) {
		if err := d.RestoreSettings(ctx); err != nil {
			glog.Warningf("restore settings on connect: %v", err)
		}
	}
	e.Device.Register(e.Client.Dispatcher())

	if c.MQTTBrokerURL != "" {
		queue, err := mqtt.NewQueueFromURL(c.MQTTBrokerURL, mqtt.WillOptions(c.ID))
		if err != nil {
			return nil, fmt.Errorf("create MQTT queue error: %w", err)
		}
		e.Publisher = mqtt.NewPublisher(queue, c.ID, e.Client)
		e.Sinks.Add(e.Publisher)
	}
	if c.WebSocketAddr != "" {
		e.Monitor = websocket.NewServer(c.WebSocketAddr)
		e.Monitor.Status = e.Device.Status
		e.Sinks.Add(e.Monitor)
	}
	return e, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// RunLink opens the port and runs the link until the port fails or ctx is done.
func (e *Env) RunLink(ctx context.Context) error {
	port, err := e.OpenPort(e.Config.Serial)
	if err != nil {
		return err
	}
	glog.Infof("serial port %s open", e.Config.Serial.Port)
	e.Link.Attach(port)
	defer func() {
		e.Link.Detach()
		e.Device.Disconnect(context.Background())
	}()
	return fx.RunWithContextCloser(ctx, port, func() error {
		return e.Client.Run(ctx)
	})
}

// Runnables returns what to run for the configured stack.
func (e *Env) Runnables() []fx.Runnable {
	runnables := []fx.Runnable{
		fx.Retry(fx.NamedRun("link", fx.RunFunc(e.RunLink)), e.Config.ReconnectDelay),
		fx.NamedRun("device", e.Device),
	}
	if e.Publisher != nil {
		runnables = append(runnables, fx.NamedRun("mqtt", e.Publisher))
	}
	if e.Monitor != nil {
		runnables = append(runnables, fx.NamedRun("websocket", e.Monitor))
	}
	return runnables
}
