// Package sh implements the interactive host shell of the keyboard.
package sh

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"image/gif"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/splitkb/pkg/env"
	"github.com/robotalks/splitkb/pkg/messages"
	"github.com/robotalks/splitkb/pkg/render"
	"github.com/robotalks/splitkb/pkg/telemetry/gateway"
	"github.com/robotalks/splitkb/pkg/transport"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *HostConn

	// Output receives keyboard logs and command output outside of ishell.
	Output io.Writer

	open   func(target string) (string, io.ReadWriteCloser, error)
	bg     context.CancelFunc
	bgDone chan struct{}
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
		&StatsCmd,
		&PixelsCmd,
		&RenderCmd,
		&MetricsCmd,
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
		Output: os.Stdout,
		open:   Open,
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

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the host link to target.
func (s *Shell) Connect(target string) error {
	name, rw, err := s.open(target)
	if err != nil {
		return errors.Wrapf(err, "open %q", target)
	}
	s.Disconnect()
	s.Conn = NewHostConn(name, rw, s.Output)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", name))
	return nil
}

// Disconnect closes current connection.
func (s *Shell) Disconnect() {
	if s.bg != nil {
		s.bg()
		s.bg = nil
	}
	if s.Conn != nil {
		s.Conn.Close()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Background runs fn until it returns or the connection is closed.
// Only one background task runs at a time.
func (s *Shell) Background(name string, fn func(ctx context.Context) error) {
	if s.bg != nil {
		s.bg()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.bg, s.bgDone = cancel, done
	go func() {
		defer close(done)
		defer cancel()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(s.Output, "%s: %v\n", name, err)
		}
	}()
}

// Wait waits for the background task to finish.
func (s *Shell) Wait() {
	if s.bgDone != nil {
		<-s.bgDone
	}
}

// Stats requests stats from the keyboard.
func (s *Shell) Stats() (messages.Stats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
	defer cancel()
	return s.Conn.Stats(ctx, s.Config.Timeout)
}

func (s *Shell) requestTimeout() time.Duration {
	return 20*s.Config.Timeout + time.Second
}

func (s *Shell) print(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Device != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Device)
		}
		if err := s.Connect(s.Config.Device); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Device, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		s.Wait()
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

func parseBytes4(str string) (data [4]byte, err error) {
	p, err := hex.DecodeString(str)
	if err != nil {
		return data, err
	}
	if len(p) != len(data) {
		return data, errors.Errorf("%q: 4 bytes expected", str)
	}
	copy(data[:], p)
	return
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			ports, err := transport.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if ports == nil {
					ports = []string{}
				}
				s.print(c, ports, "")
				return
			}
			if len(ports) == 0 {
				c.Println("No ports found")
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}

	// ConnectCmd connects the keyboard.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[DEV|ws://URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			target := s.Config.Device
			if len(c.Args) > 0 {
				target = c.Args[0]
			}
			if err := s.Connect(target); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects the keyboard.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// StatsCmd prints keypress statistics.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			stats, err := s.Stats()
			if err != nil {
				c.Err(err)
				return
			}
			s.print(c, stats, fmt.Sprintf("keypresses: %d", stats.Keypresses))
		}),
	}

	// PixelsCmd writes two pixel rows of one side.
	PixelsCmd = ishell.Cmd{
		Name: "pixels",
		Help: "SIDE ROW HEX0 HEX1",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) != 4 {
				c.Err(fmt.Errorf("usage: pixels SIDE ROW HEX0 HEX1"))
				return
			}
			var msg messages.HostWritePixels
			var err error
			if msg.Side, err = messages.ParseSide(c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			row, err := strconv.ParseUint(c.Args[1], 0, 8)
			if err != nil {
				c.Err(err)
				return
			}
			msg.Row = uint8(row)
			if msg.Data0, err = parseBytes4(c.Args[2]); err != nil {
				c.Err(err)
				return
			}
			if msg.Data1, err = parseBytes4(c.Args[3]); err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout())
			defer cancel()
			if err := s.Conn.Eventer.Send(ctx, msg, s.Config.Timeout); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// RenderCmd plays a GIF on both displays in background.
	RenderCmd = ishell.Cmd{
		Name: "render",
		Help: "FILE [loop]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: render FILE [loop]"))
				return
			}
			f, err := os.Open(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			anim, err := gif.DecodeAll(f)
			f.Close()
			if err != nil {
				c.Err(errors.Wrapf(err, "decode %s", c.Args[0]))
				return
			}
			conn, timeout := s.Conn, s.Config.Timeout
			player := &render.Player{
				Loop: len(c.Args) > 1 && c.Args[1] == "loop",
				Send: func(ctx context.Context, msg messages.HostWritePixels) error {
					return conn.WritePixels(ctx, msg, timeout)
				},
			}
			s.Background("render", func(ctx context.Context) error {
				return player.Play(ctx, anim)
			})
		}),
	}

	// MetricsCmd pushes stats to a Prometheus push gateway in background.
	MetricsCmd = ishell.Cmd{
		Name: "metrics",
		Help: "[GATEWAY]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			url := s.Config.PushGateway
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			conn, timeout := s.Conn, s.Config.Timeout
			pusher := gateway.NewPusher(url, s.Config.HostID, func(ctx context.Context) (messages.Stats, error) {
				ctx, cancel := context.WithTimeout(ctx, s.requestTimeout())
				defer cancel()
				return conn.Stats(ctx, timeout)
			})
			s.Background("metrics", pusher.Run)
			c.Printf("pushing to %s every %s\n", url, pusher.Interval)
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
