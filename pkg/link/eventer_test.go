package link

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// tamperWriter records every frame written and lets the test drop or
// rewrite it before it reaches the wire.
type tamperWriter struct {
	w      io.Writer
	tamper func(n int, frame []byte) []byte

	lock   sync.Mutex
	frames []Envelope
}

func (w *tamperWriter) Write(p []byte) (int, error) {
	frame := append([]byte(nil), p...)
	w.lock.Lock()
	n := len(w.frames)
	if data, err := DecodeFrame(frame[:len(frame)-1]); err == nil {
		if env, err := UnmarshalEnvelope(data); err == nil {
			w.frames = append(w.frames, env)
		}
	}
	w.lock.Unlock()
	if w.tamper != nil {
		if frame = w.tamper(n, frame); frame == nil {
			return len(p), nil
		}
	}
	if _, err := w.w.Write(frame); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *tamperWriter) envelopes() []Envelope {
	w.lock.Lock()
	defer w.lock.Unlock()
	return append([]Envelope(nil), w.frames...)
}

func dropFirst(count int) func(int, []byte) []byte {
	return func(n int, frame []byte) []byte {
		if n < count {
			return nil
		}
		return frame
	}
}

func corruptFirst(n int, frame []byte) []byte {
	if n > 0 {
		return frame
	}
	data, err := DecodeFrame(frame[:len(frame)-1])
	if err != nil {
		panic(err)
	}
	data[2] ^= 0xff
	frame, err = EncodeFrameLimit(data, 0)
	if err != nil {
		panic(err)
	}
	return frame
}

type linkTestCtx struct {
	t      *testing.T
	a, b   *Eventer
	txA    *tamperWriter
	txB    *tamperWriter
	cancel func()
	doneCh chan error
	pipes  []*io.PipeWriter
}

func newLinkTest(t *testing.T, firstID ID, tamper func(int, []byte) []byte) *linkTestCtx {
	abR, abW := io.Pipe()
	baR, baW := io.Pipe()
	c := &linkTestCtx{
		t:      t,
		txA:    &tamperWriter{w: abW, tamper: tamper},
		txB:    &tamperWriter{w: baW},
		doneCh: make(chan error, 2),
		pipes:  []*io.PipeWriter{abW, baW},
	}
	c.a = NewEventer(c.txA, baR, testDecoder, Config{Name: "a", FirstID: firstID})
	c.b = NewEventer(c.txB, abR, testDecoder, Config{Name: "b"})
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() { c.doneCh <- c.a.Run(ctx) }()
	go func() { c.doneCh <- c.b.Run(ctx) }()
	t.Cleanup(c.stop)
	return c
}

func (c *linkTestCtx) stop() {
	c.cancel()
	for _, w := range c.pipes {
		w.Close()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-c.doneCh:
		case <-time.After(time.Second):
			c.t.Fatal("eventer not stopped")
		}
	}
}

func (c *linkTestCtx) expectInbound(expected Message) {
	select {
	case msg := <-c.b.Inbound():
		require.Equal(c.t, expected, msg)
	case <-time.After(time.Second):
		c.t.Fatal("expect inbound message timeout")
	}
}

func (c *linkTestCtx) expectNoInbound() {
	select {
	case msg := <-c.b.Inbound():
		c.t.Fatalf("unexpected inbound message %v", msg)
	default:
	}
}

func ids(envs []Envelope, kind Kind) (result []ID) {
	for _, env := range envs {
		if env.Kind == kind {
			result = append(result, env.ID)
		}
	}
	return
}

func TestNormalExchange(t *testing.T) {
	c := newLinkTest(t, 5, nil)
	start := time.Now()
	require.NoError(t, c.a.Send(context.Background(), testMsg(42), 50*time.Millisecond))
	require.True(t, time.Since(start) < 50*time.Millisecond)
	c.expectInbound(testMsg(42))

	require.Equal(t, []ID{5}, ids(c.txA.envelopes(), KindCommand))
	acks := c.txB.envelopes()
	require.Equal(t, []Envelope{{Kind: KindAck, ID: 5, Checksum: AckChecksum(5)}}, acks)
	require.Equal(t, 0, c.a.InFlight())
	require.Equal(t, float64(0), testutil.ToFloat64(c.a.Metrics().SendTimeouts))
	require.Equal(t, float64(1), testutil.ToFloat64(c.a.Metrics().SendsCompleted))
	require.Equal(t, float64(1), testutil.ToFloat64(c.b.Metrics().AcksSent))
}

func TestDroppedCommandRetried(t *testing.T) {
	c := newLinkTest(t, 5, dropFirst(1))
	start := time.Now()
	require.NoError(t, c.a.Send(context.Background(), testMsg(42), 50*time.Millisecond))
	elapsed := time.Since(start)
	require.True(t, elapsed >= 50*time.Millisecond, "elapsed %v", elapsed)
	require.True(t, elapsed < 500*time.Millisecond, "elapsed %v", elapsed)
	c.expectInbound(testMsg(42))
	c.expectNoInbound()

	require.Equal(t, []ID{5, 6}, ids(c.txA.envelopes(), KindCommand))
	require.Equal(t, []ID{6}, ids(c.txB.envelopes(), KindAck))
	require.Equal(t, float64(1), testutil.ToFloat64(c.a.Metrics().SendTimeouts))
}

func TestCorruptedCommandIgnored(t *testing.T) {
	c := newLinkTest(t, 7, corruptFirst)
	require.NoError(t, c.a.Send(context.Background(), testMsg(42), 50*time.Millisecond))
	c.expectInbound(testMsg(42))
	c.expectNoInbound()

	require.Equal(t, []ID{7, 8}, ids(c.txA.envelopes(), KindCommand))
	require.Equal(t, []ID{8}, ids(c.txB.envelopes(), KindAck))
	require.Equal(t, float64(1), testutil.ToFloat64(c.a.Metrics().SendTimeouts))
	require.Equal(t, float64(1), testutil.ToFloat64(
		c.b.Metrics().FrameErrors.WithLabelValues(ReasonChecksum)))
}

func TestAtLeastOnceUnderLoss(t *testing.T) {
	const dropped = 3
	c := newLinkTest(t, 0, dropFirst(dropped))
	require.NoError(t, c.a.Send(context.Background(), testMsg(7), 20*time.Millisecond))
	c.expectInbound(testMsg(7))
	c.expectNoInbound()

	require.Equal(t, float64(dropped), testutil.ToFloat64(c.a.Metrics().SendTimeouts))
	require.Equal(t, float64(dropped+1), testutil.ToFloat64(c.a.Metrics().SendAttempts))
	require.Equal(t, []ID{0, 1, 2, 3}, ids(c.txA.envelopes(), KindCommand))
	require.Equal(t, 0, c.a.InFlight())
}

func TestRequestQueue(t *testing.T) {
	c := newLinkTest(t, 0, nil)
	results := make(chan error, 3)
	for i := 1; i <= 3; i++ {
		c.a.Requests() <- Request{Message: testMsg(i), Timeout: 50 * time.Millisecond, Result: results}
	}
	for i := 1; i <= 3; i++ {
		c.expectInbound(testMsg(i))
		require.NoError(t, <-results)
	}
	require.True(t, c.a.TryEnqueue(testMsg(4), 50*time.Millisecond))
	c.expectInbound(testMsg(4))
	require.NoError(t, c.a.Enqueue(context.Background(), testMsg(5), 50*time.Millisecond))
	c.expectInbound(testMsg(5))
}

func TestBothDirections(t *testing.T) {
	c := newLinkTest(t, 0, nil)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			require.NoError(t, c.a.Send(context.Background(), testMsg(i), 50*time.Millisecond))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			require.NoError(t, c.b.Send(context.Background(), testMsg(100+i), 50*time.Millisecond))
		}
	}()
	for i := 0; i < 20; i++ {
		c.expectInbound(testMsg(i))
		select {
		case msg := <-c.a.Inbound():
			require.Equal(t, testMsg(100+i), msg)
		case <-time.After(time.Second):
			t.Fatal("expect inbound message timeout")
		}
	}
	wg.Wait()
}

func TestSendCanceled(t *testing.T) {
	e := NewEventer(io.Discard, bytes.NewReader(nil), testDecoder, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	// Nothing drains the outbound queue, attempts time out.
	err := e.Send(ctx, testMsg(1), 10*time.Millisecond)
	require.Equal(t, context.DeadlineExceeded, err)
	require.Equal(t, 0, e.InFlight())
}

func TestSendFrameTooLarge(t *testing.T) {
	e := NewEventer(io.Discard, bytes.NewReader(nil), testDecoder, Config{})
	err := e.Send(context.Background(), testBlob(bytes.Repeat([]byte{1}, 124)), time.Millisecond)
	require.Equal(t, ErrFrameTooLarge, err)
	require.Equal(t, float64(0), testutil.ToFloat64(e.Metrics().SendAttempts))
}

func TestWaiterCleanupOnTimeout(t *testing.T) {
	e := NewEventer(io.Discard, bytes.NewReader(nil), testDecoder, Config{})
	for id := 128; id < 255; id++ {
		e.waiters.Register(ID(id))
	}
	require.Equal(t, e.waiters.Cap()-1, e.waiters.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()
	err := e.Send(ctx, testMsg(1), 10*time.Millisecond)
	require.Equal(t, context.DeadlineExceeded, err)
	require.True(t, testutil.ToFloat64(e.Metrics().SendTimeouts) >= 2)
	for id := 0; id < 8; id++ {
		require.False(t, e.waiters.Has(ID(id)))
	}
	require.Equal(t, e.waiters.Cap()-1, e.waiters.Len())
}

func TestEventerStopsOnEOF(t *testing.T) {
	e := NewEventer(io.Discard, bytes.NewReader(nil), testDecoder, Config{})
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(context.Background()) }()
	select {
	case err := <-errCh:
		require.Equal(t, io.EOF, errors.Cause(err))
	case <-time.After(time.Second):
		t.Fatal("eventer not stopped")
	}
}

func TestDuplicateAckIgnored(t *testing.T) {
	rxR, rxW := io.Pipe()
	e := NewEventer(io.Discard, rxR, testDecoder, Config{Name: "dup"})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()
	defer func() {
		cancel()
		rxW.Close()
		<-errCh
	}()

	writeEnvelope := func(env Envelope) {
		data, err := env.MarshalBinary()
		require.NoError(t, err)
		frame, err := EncodeFrame(data)
		require.NoError(t, err)
		_, err = rxW.Write(frame)
		require.NoError(t, err)
	}
	writeEnvelope(NewAck(9))
	writeEnvelope(NewAck(9))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(e.Metrics().AcksUnmatched) == 2
	}, time.Second, time.Millisecond)
	require.Zero(t, e.InFlight())

	payload, err := testMsg(7).MarshalBinary()
	require.NoError(t, err)
	writeEnvelope(NewCommand(3, payload))
	select {
	case msg := <-e.Inbound():
		require.Equal(t, testMsg(7), msg)
	case <-time.After(time.Second):
		t.Fatal("link stopped after duplicate acks")
	}
}

func TestCorruptedChecksumDropped(t *testing.T) {
	rxR, rxW := io.Pipe()
	e := NewEventer(io.Discard, rxR, testDecoder, Config{Name: "csum"})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()
	defer func() {
		cancel()
		rxW.Close()
		<-errCh
	}()

	writeEnvelope := func(env Envelope) {
		data, err := env.MarshalBinary()
		require.NoError(t, err)
		frame, err := EncodeFrame(data)
		require.NoError(t, err)
		_, err = rxW.Write(frame)
		require.NoError(t, err)
	}
	payload, err := testMsg(5).MarshalBinary()
	require.NoError(t, err)
	cmd := NewCommand(2, payload)
	cmd.Checksum ^= 0x5a
	writeEnvelope(cmd)
	ack := NewAck(2)
	ack.Checksum ^= 0x5a
	writeEnvelope(ack)

	checksumErrors := e.Metrics().FrameErrors.WithLabelValues(ReasonChecksum)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(checksumErrors) == 2
	}, time.Second, time.Millisecond)
	require.Zero(t, testutil.ToFloat64(e.Metrics().AcksSent))
	require.Zero(t, testutil.ToFloat64(e.Metrics().AcksUnmatched))
	select {
	case msg := <-e.Inbound():
		t.Fatalf("corrupted command delivered: %v", msg)
	case <-time.After(20 * time.Millisecond):
	}
}
