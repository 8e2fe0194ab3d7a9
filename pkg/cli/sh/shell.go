package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/owb.go/pkg/env"
	fx "github.com/robotalks/owb.go/pkg/framework"
	"github.com/robotalks/owb.go/pkg/kb"
)

// EventBufferSize is the number of events kept between two "events" commands.
const EventBufferSize = 256

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn
}

// Conn is a running link to the keyboard pack.
type Conn struct {
	Env    *env.Env
	Runner *fx.Runner
	Events kb.ChanSink
}

// Close stops the link and waits for it.
func (c *Conn) Close() error {
	c.Runner.Stop()
	return c.Runner.Wait()
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens port, or the configured one when empty, and starts the link.
// Bridges are not started from the shell.
func (s *Shell) Connect(port string) error {
	conf := *s.Config
	if port != "" {
		conf.Serial.Port = port
	}
	conf.MQTTBrokerURL, conf.WebSocketAddr = "", ""
	e, err := conf.NewEnv()
	if err != nil {
		return err
	}
	conn := &Conn{Env: e, Events: make(kb.ChanSink, EventBufferSize)}
	e.Sinks.Add(conn.Events)
	s.Disconnect()
	conn.Runner = fx.NewRunner().Go(e.Runnables()...)
	s.Conn = conn
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", conf.Serial.Port))
	return nil
}

// Disconnect stops the current link.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		if err := s.Conn.Close(); err != nil {
			s.Shell.Println(err)
		}
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Output prints a command result.
func (s *Shell) Output(c *ishell.Context, result interface{}) {
	if result == nil {
		return
	}
	if s.OutputJSON {
		out, err := json.Marshal(result)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(formatResult(result))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect {
		if err := s.Connect(""); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Serial.Port, err)
		}
		defer s.Disconnect()
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
