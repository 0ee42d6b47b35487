package transport

import (
	"io"
	"math/rand"
	"sync"
)

// LossyConfig defines the faults injected by Lossy.
type LossyConfig struct {
	// DropFirst drops this many frames before any other fault applies.
	DropFirst int
	// DropRate is the probability a frame is dropped.
	DropRate float64
	// CorruptRate is the probability one byte of a frame is altered.
	CorruptRate float64
	// Seed makes the faults reproducible.
	Seed int64
}

// LossyStats counts the frames seen by Lossy.
type LossyStats struct {
	Frames    int
	Dropped   int
	Corrupted int
}

// Lossy is a writer injecting faults per frame. Frames are delimited by
// a zero byte; a partial frame is held back until its delimiter.
type Lossy struct {
	w    io.Writer
	conf LossyConfig
	rnd  *rand.Rand

	lock    sync.Mutex
	pending []byte
	stats   LossyStats
}

// NewLossy wraps w.
func NewLossy(w io.Writer, conf LossyConfig) *Lossy {
	return &Lossy{w: w, conf: conf, rnd: rand.New(rand.NewSource(conf.Seed))}
}

// Write implements io.Writer.
func (l *Lossy) Write(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, b := range p {
		l.pending = append(l.pending, b)
		if b != 0 {
			continue
		}
		frame := l.pending
		l.pending = nil
		if frame = l.tamper(frame); frame == nil {
			continue
		}
		if _, err := l.w.Write(frame); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (l *Lossy) tamper(frame []byte) []byte {
	l.stats.Frames++
	if l.stats.Frames <= l.conf.DropFirst ||
		(l.conf.DropRate > 0 && l.rnd.Float64() < l.conf.DropRate) {
		l.stats.Dropped++
		return nil
	}
	if len(frame) > 1 && l.conf.CorruptRate > 0 && l.rnd.Float64() < l.conf.CorruptRate {
		// Never produce a delimiter, the frame boundary must survive.
		i := l.rnd.Intn(len(frame) - 1)
		if b := frame[i] ^ 1<<uint(l.rnd.Intn(8)); b != 0 {
			frame[i] = b
		} else {
			frame[i] = ^frame[i]
		}
		l.stats.Corrupted++
	}
	return frame
}

// Stats returns the counters so far.
func (l *Lossy) Stats() LossyStats {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.stats
}

// LossyReadWriter combines a reader with a Lossy writer.
type LossyReadWriter struct {
	io.Reader
	*Lossy
	closer io.Closer
}

// NewLossyReadWriter injects faults into what is written to rw.
func NewLossyReadWriter(rw io.ReadWriteCloser, conf LossyConfig) *LossyReadWriter {
	return &LossyReadWriter{Reader: rw, Lossy: NewLossy(rw, conf), closer: rw}
}

// Close implements io.Closer.
func (l *LossyReadWriter) Close() error {
	return l.closer.Close()
}
