package transport

import (
	"io"
	"sync"
)

// DefaultPipeCapacity is the number of bytes buffered in each direction.
const DefaultPipeCapacity = 128

type stream struct {
	data chan byte
	done chan struct{}
	once sync.Once
}

func newStream(capacity int) *stream {
	return &stream{
		data: make(chan byte, capacity),
		done: make(chan struct{}),
	}
}

func (s *stream) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *stream) write(p []byte) (int, error) {
	for n, b := range p {
		select {
		case <-s.done:
			return n, io.ErrClosedPipe
		default:
		}
		select {
		case s.data <- b:
		case <-s.done:
			return n, io.ErrClosedPipe
		}
	}
	return len(p), nil
}

func (s *stream) read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case p[0] = <-s.data:
	case <-s.done:
		select {
		case p[0] = <-s.data:
		default:
			return 0, io.EOF
		}
	}
	n := 1
	for ; n < len(p); n++ {
		select {
		case p[n] = <-s.data:
		default:
			return n, nil
		}
	}
	return n, nil
}

// PipeEnd is one end of a Pipe.
type PipeEnd struct {
	rx, tx *stream
}

// Pipe creates an in-memory full-duplex byte link with
// DefaultPipeCapacity bytes buffered per direction. Writes block while
// the buffer is full.
func Pipe() (*PipeEnd, *PipeEnd) {
	return PipeWithCapacity(DefaultPipeCapacity)
}

// PipeWithCapacity creates a Pipe with capacity bytes buffered per
// direction.
func PipeWithCapacity(capacity int) (*PipeEnd, *PipeEnd) {
	ab, ba := newStream(capacity), newStream(capacity)
	return &PipeEnd{rx: ba, tx: ab}, &PipeEnd{rx: ab, tx: ba}
}

// Read implements io.Reader. It returns io.EOF once the pipe is closed
// and drained.
func (e *PipeEnd) Read(p []byte) (int, error) {
	return e.rx.read(p)
}

// Write implements io.Writer.
func (e *PipeEnd) Write(p []byte) (int, error) {
	return e.tx.write(p)
}

// Close implements io.Closer. It closes both directions, for both ends.
func (e *PipeEnd) Close() error {
	e.rx.close()
	e.tx.close()
	return nil
}
