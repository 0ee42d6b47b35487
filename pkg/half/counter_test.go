package half

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := Counter(65535)
	c.Inc()
	require.Equal(t, Counter(0), c)
	c.Add(-3)
	require.Equal(t, Counter(65533), c)
	require.Equal(t, int16(3), Counter(2).Delta(65535))
	require.Equal(t, int16(-3), Counter(65535).Delta(2))
}

func TestCorrection(t *testing.T) {
	require.Equal(t, int16(0), Correction(0))
	require.Equal(t, int16(1), Correction(1))
	require.Equal(t, int16(-1), Correction(-1))
	require.Equal(t, int16(1), Correction(3))
	require.Equal(t, int16(10), Correction(200))
	require.Equal(t, int16(-10), Correction(-200))
}

func TestSecondaryLEDsConverge(t *testing.T) {
	s := &Secondary{}
	s.target = 100
	for i := 0; i < 40; i++ {
		s.stepLEDs()
	}
	require.Equal(t, s.target-1, s.counter)
	require.Equal(t, uint16(s.counter), s.LEDCounter())

	// Stays in step once converged.
	s.stepLEDs()
	require.Equal(t, s.target-1, s.counter)
}

func TestTicker(t *testing.T) {
	now := time.Now()
	tk := ticker{interval: 10 * time.Millisecond}
	require.False(t, tk.due(now))
	require.False(t, tk.due(now.Add(5*time.Millisecond)))
	require.True(t, tk.due(now.Add(10*time.Millisecond)))
	require.False(t, tk.due(now.Add(15*time.Millisecond)))
	// Far behind schedule: fires once, then realigns.
	require.True(t, tk.due(now.Add(time.Second)))
	require.False(t, tk.due(now.Add(time.Second+time.Millisecond)))
}

func TestFramebuffer(t *testing.T) {
	fb := NewFramebuffer()
	fb.WriteRow(2, [4]byte{0x01, 0, 0, 0}, [4]byte{0, 0, 0, 0x80})
	fb.WriteRow(127, [4]byte{0xff}, [4]byte{0xff})
	fb.WriteRow(200, [4]byte{0xff}, [4]byte{0xff})
	require.Equal(t, [4]byte{0x01, 0, 0, 0}, fb.Row(2))
	require.Equal(t, [4]byte{0, 0, 0, 0x80}, fb.Row(3))
	require.Equal(t, [4]byte{0xff}, fb.Row(127))
	require.True(t, fb.Pixel(0, 2))
	require.False(t, fb.Pixel(1, 2))
	require.True(t, fb.Pixel(31, 3))

	lines := strings.Split(fb.String(), "\n")
	require.Len(t, lines, DisplayHeight+1)
	require.Equal(t, "#...............................", lines[2])
	require.Equal(t, "...............................#", lines[3])
	require.Equal(t, "########........................", lines[127])
}
