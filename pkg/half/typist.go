package half

import (
	"context"
	"math/rand"
	"time"
)

// Keyboard accepts key events of one half.
type Keyboard interface {
	Press(ctx context.Context, x, y uint8) error
	Release(ctx context.Context, x, y uint8) error
}

// Matrix size of one half.
const (
	Cols = 6
	Rows = 4
)

// Typist presses random keys, standing in for a key matrix.
type Typist struct {
	Keyboard Keyboard
	// Interval is the average time between two presses.
	Interval time.Duration
	// Hold is how long a key stays pressed.
	Hold time.Duration

	rnd *rand.Rand
}

// NewTypist creates a Typist with a reproducible sequence.
func NewTypist(kb Keyboard, interval time.Duration, seed int64) *Typist {
	return &Typist{
		Keyboard: kb,
		Interval: interval,
		Hold:     interval / 4,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// Run implements fx.Runnable.
func (t *Typist) Run(ctx context.Context) error {
	for {
		x, y := uint8(t.rnd.Intn(Cols)), uint8(t.rnd.Intn(Rows))
		if err := t.Keyboard.Press(ctx, x, y); err != nil {
			return err
		}
		if err := sleep(ctx, t.Hold); err != nil {
			return err
		}
		if err := t.Keyboard.Release(ctx, x, y); err != nil {
			return err
		}
		// Jitter between half and one and a half intervals.
		pause := t.Interval/2 + time.Duration(t.rnd.Int63n(int64(t.Interval)+1))
		if err := sleep(ctx, pause-t.Hold); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
