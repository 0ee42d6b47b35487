package sh

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	fx "github.com/robotalks/splitkb/pkg/framework"
	"github.com/robotalks/splitkb/pkg/link"
	"github.com/robotalks/splitkb/pkg/messages"
	"github.com/robotalks/splitkb/pkg/transport"
)

// ErrNoPorts is returned when no serial port can be selected.
var ErrNoPorts = errors.New("no serial ports found")

// HostConn is a running host link to the primary half.
type HostConn struct {
	Target  string
	Eventer *link.Eventer

	rw     io.ReadWriteCloser
	logs   io.Writer
	stats  chan messages.Stats
	cancel func()
	done   chan struct{}
	err    error
}

// Open opens target, a serial device or a ws:// URL. An empty target
// selects the first ttyACM port.
func Open(target string) (string, io.ReadWriteCloser, error) {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		conn, err := transport.DialWS(target)
		return target, conn, err
	}
	if target == "" {
		ports, err := transport.Ports()
		if err != nil {
			return "", nil, err
		}
		for _, port := range ports {
			if strings.Contains(port, "ttyACM") {
				target = port
				break
			}
		}
		if target == "" {
			return "", nil, ErrNoPorts
		}
		glog.Infof("selected port %s", target)
	}
	f, err := transport.OpenSerial(target)
	return target, f, err
}

// NewHostConn starts the host link over rw. Log lines from the keyboard
// are written to logs.
func NewHostConn(target string, rw io.ReadWriteCloser, logs io.Writer) *HostConn {
	conf := link.DefaultConfig("host")
	c := &HostConn{
		Target:  target,
		Eventer: link.NewEventer(rw, rw, messages.KeyboardToHostDecoder, conf),
		rw:      rw,
		logs:    logs,
		stats:   make(chan messages.Stats, 1),
		done:    make(chan struct{}),
	}
	var ctx context.Context
	ctx, c.cancel = context.WithCancel(context.Background())
	runner := fx.NewRunnerWith(ctx)
	runner.StopOnExit = true
	runner.Go(
		fx.NamedRun(c.Eventer.Name(), c.Eventer),
		fx.NamedRun("dispatch", fx.RunFunc(c.dispatch)),
	)
	go func() {
		c.err = runner.Wait()
		close(c.done)
	}()
	return c
}

// Done is closed when the link stops.
func (c *HostConn) Done() <-chan struct{} {
	return c.done
}

// Close stops the link and closes the transport.
func (c *HostConn) Close() error {
	c.cancel()
	err := c.rw.Close()
	<-c.done
	return err
}

// Err returns why the link stopped.
func (c *HostConn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *HostConn) dispatch(ctx context.Context) error {
	for {
		var msg link.Message
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg = <-c.Eventer.Inbound():
		}
		switch msg := msg.(type) {
		case messages.Log:
			fmt.Fprintf(c.logs, "[%s] %s\n", c.Target, msg.Text)
		case messages.Stats:
			select {
			case <-c.stats:
			default:
			}
			c.stats <- msg
		}
	}
}

// Stats requests the keypress statistics.
func (c *HostConn) Stats(ctx context.Context, timeout time.Duration) (messages.Stats, error) {
	select {
	case <-c.stats:
	default:
	}
	if err := c.Eventer.Send(ctx, messages.RequestStats{}, timeout); err != nil {
		return messages.Stats{}, err
	}
	select {
	case <-ctx.Done():
		return messages.Stats{}, ctx.Err()
	case <-c.done:
		return messages.Stats{}, errors.Errorf("link stopped: %v", c.err)
	case stats := <-c.stats:
		return stats, nil
	}
}

// WritePixels sends two pixel rows to one side.
func (c *HostConn) WritePixels(ctx context.Context, msg messages.HostWritePixels, timeout time.Duration) error {
	return c.Eventer.Enqueue(ctx, msg, timeout)
}
