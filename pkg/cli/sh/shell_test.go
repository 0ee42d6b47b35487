package sh

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/splitkb/pkg/env"
	"github.com/robotalks/splitkb/pkg/link"
	"github.com/robotalks/splitkb/pkg/messages"
	"github.com/robotalks/splitkb/pkg/transport"
)

// fakeKeyboard answers the host link like a primary half.
type fakeKeyboard struct {
	eventer *link.Eventer
	cancel  func()
	done    chan struct{}

	lock   sync.Mutex
	pixels []messages.HostWritePixels
}

func newFakeKeyboard(rw io.ReadWriter, keypresses uint32) *fakeKeyboard {
	kb := &fakeKeyboard{
		eventer: link.NewEventer(rw, rw, messages.HostToKeyboardDecoder, link.Config{Name: "keyboard"}),
		done:    make(chan struct{}),
	}
	var ctx context.Context
	ctx, kb.cancel = context.WithCancel(context.Background())
	go kb.eventer.Run(ctx)
	go func() {
		defer close(kb.done)
		kb.eventer.Enqueue(ctx, messages.Log{Text: "hello"}, 10*time.Millisecond)
		for {
			var msg link.Message
			select {
			case <-ctx.Done():
				return
			case msg = <-kb.eventer.Inbound():
			}
			switch msg := msg.(type) {
			case messages.RequestStats:
				kb.eventer.Enqueue(ctx, messages.Stats{Keypresses: keypresses}, 10*time.Millisecond)
			case messages.HostWritePixels:
				kb.lock.Lock()
				kb.pixels = append(kb.pixels, msg)
				kb.lock.Unlock()
			}
		}
	}()
	return kb
}

func (kb *fakeKeyboard) stop() {
	kb.cancel()
	<-kb.done
}

func (kb *fakeKeyboard) received() []messages.HostWritePixels {
	kb.lock.Lock()
	defer kb.lock.Unlock()
	return append([]messages.HostWritePixels(nil), kb.pixels...)
}

type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func newTestShell(t *testing.T, keypresses uint32) (*Shell, *fakeKeyboard, *syncBuffer) {
	a, b := transport.Pipe()
	kb := newFakeKeyboard(b, keypresses)
	conf := env.NewConfig()
	conf.Timeout = 10 * time.Millisecond
	out := &syncBuffer{}
	s := New(conf)
	s.Output = out
	s.open = func(target string) (string, io.ReadWriteCloser, error) {
		return target, a, nil
	}
	t.Cleanup(func() {
		s.Disconnect()
		b.Close()
		kb.stop()
	})
	return s, kb, out
}

func TestShellStatsAndLog(t *testing.T) {
	s, _, out := newTestShell(t, 42)
	require.NoError(t, s.Connect("pipe"))
	require.Eventually(t, func() bool {
		return strings.HasPrefix(out.String(), "[pipe] hello\n")
	}, time.Second, time.Millisecond)

	stats, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, messages.Stats{Keypresses: 42}, stats)
}

func TestShellPixels(t *testing.T) {
	s, kb, _ := newTestShell(t, 0)
	require.NoError(t, s.Connect("pipe"))
	require.NoError(t, s.Shell.Process("pixels", "right", "6", "01020304", "a0b0c0d0"))
	require.Eventually(t, func() bool {
		return len(kb.received()) == 1
	}, time.Second, time.Millisecond)
	require.Equal(t, messages.HostWritePixels{
		Side:  messages.Right,
		Row:   6,
		Data0: [4]byte{1, 2, 3, 4},
		Data1: [4]byte{0xa0, 0xb0, 0xc0, 0xd0},
	}, kb.received()[0])
}

func TestShellDisconnect(t *testing.T) {
	s, _, _ := newTestShell(t, 0)
	require.NoError(t, s.Connect("pipe"))
	conn := s.Conn
	s.Disconnect()
	require.Nil(t, s.Conn)
	select {
	case <-conn.Done():
	case <-time.After(time.Second):
		t.Fatal("connection not stopped")
	}
}

func TestShellBackground(t *testing.T) {
	s, _, out := newTestShell(t, 0)
	started := make(chan struct{})
	s.Background("task", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	s.Background("failing", func(context.Context) error {
		return io.ErrUnexpectedEOF
	})
	s.Wait()
	require.Equal(t, "failing: unexpected EOF\n", out.String())
}

func TestParseBytes4(t *testing.T) {
	data, err := parseBytes4("deadbeef")
	require.NoError(t, err)
	require.Equal(t, [4]byte{0xde, 0xad, 0xbe, 0xef}, data)
	_, err = parseBytes4("dead")
	require.Error(t, err)
	_, err = parseBytes4("xyz")
	require.Error(t, err)
}
