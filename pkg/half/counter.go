package half

import "math"

// Counter is a wrapping 16-bit counter, e.g. the LED animation frame.
type Counter uint16

// Inc advances the counter by one.
func (c *Counter) Inc() {
	*c++
}

// Add moves the counter by d, wrapping.
func (c *Counter) Add(d int16) {
	*c = Counter(uint16(*c) + uint16(d))
}

// Delta returns the shortest signed distance from other to c.
func (c Counter) Delta(other Counter) int16 {
	return int16(uint16(c) - uint16(other))
}

// Correction is the step taken towards a target delta away: at least one,
// then growing with the square root of the distance.
func Correction(delta int16) int16 {
	if delta == 0 {
		return 0
	}
	step := int16(math.Sqrt(math.Abs(float64(delta) * 0.5)))
	if step < 1 {
		step = 1
	}
	if delta < 0 {
		return -step
	}
	return step
}
