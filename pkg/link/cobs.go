package link

const (
	// MaxFrameSize is the largest encoded frame, delimiter included.
	MaxFrameSize = 128

	frameDelimiter byte = 0x00
	maxBlockCode   byte = 0xff
)

// EncodeFrame stuffs payload and appends the delimiter, limited to
// MaxFrameSize.
func EncodeFrame(payload []byte) ([]byte, error) {
	return EncodeFrameLimit(payload, MaxFrameSize)
}

// EncodeFrameLimit stuffs payload and appends the delimiter. The frame is
// rejected with ErrFrameTooLarge when longer than limit bytes, it is never
// truncated.
func EncodeFrameLimit(payload []byte, limit int) ([]byte, error) {
	out := make([]byte, 1, len(payload)+len(payload)/254+2)
	codeAt, code := 0, byte(1)
	for _, b := range payload {
		if b == frameDelimiter {
			out[codeAt] = code
			codeAt, code = len(out), 1
			out = append(out, 0)
			continue
		}
		out = append(out, b)
		if code++; code == maxBlockCode {
			out[codeAt] = code
			codeAt, code = len(out), 1
			out = append(out, 0)
		}
	}
	out[codeAt] = code
	out = append(out, frameDelimiter)
	if limit > 0 && len(out) > limit {
		return nil, ErrFrameTooLarge
	}
	return out, nil
}

// DecodeFrame reverses the stuffing of a frame given without its
// delimiter.
func DecodeFrame(frame []byte) ([]byte, error) {
	out := make([]byte, 0, len(frame))
	for i := 0; i < len(frame); {
		code := frame[i]
		if code == frameDelimiter {
			return nil, ErrMalformedFrame
		}
		i++
		end := i + int(code) - 1
		if end > len(frame) {
			return nil, ErrMalformedFrame
		}
		for ; i < end; i++ {
			if frame[i] == frameDelimiter {
				return nil, ErrMalformedFrame
			}
			out = append(out, frame[i])
		}
		if code != maxBlockCode && i < len(frame) {
			out = append(out, 0)
		}
	}
	return out, nil
}

// FeedStatus is the outcome of feeding one byte to an Accumulator.
type FeedStatus int

// Feed statuses.
const (
	FeedIncomplete FeedStatus = iota
	FeedFrameReady
	FeedOversized
	FeedMalformed
)

func (s FeedStatus) String() string {
	switch s {
	case FeedIncomplete:
		return "incomplete"
	case FeedFrameReady:
		return "ready"
	case FeedOversized:
		return "oversized"
	case FeedMalformed:
		return "malformed"
	}
	return "unknown"
}

// FeedResult indicates the result after one byte.
// Frame is only set with FeedFrameReady and holds the unstuffed bytes.
type FeedResult struct {
	Status FeedStatus
	Frame  []byte
}

// Accumulator reassembles frames from single bytes.
// The zero value accepts frames up to MaxFrameSize.
type Accumulator struct {
	// Limit is the largest frame accepted, delimiter included.
	Limit int

	buf        []byte
	discarding bool
}

// NewAccumulator creates an Accumulator accepting frames up to limit bytes.
func NewAccumulator(limit int) *Accumulator {
	return &Accumulator{Limit: limit}
}

// Reset drops any partial frame.
func (a *Accumulator) Reset() {
	a.buf, a.discarding = a.buf[:0], false
}

// Feed consumes one byte.
func (a *Accumulator) Feed(b byte) (fr FeedResult) {
	if b == frameDelimiter {
		if a.discarding || len(a.buf) == 0 {
			a.Reset()
			return
		}
		frame, err := DecodeFrame(a.buf)
		a.Reset()
		if err != nil {
			fr.Status = FeedMalformed
			return
		}
		fr.Status, fr.Frame = FeedFrameReady, frame
		return
	}
	if a.discarding {
		return
	}
	limit := a.Limit
	if limit <= 0 {
		limit = MaxFrameSize
	}
	if len(a.buf)+1 >= limit {
		a.buf, a.discarding = a.buf[:0], true
		fr.Status = FeedOversized
		return
	}
	if a.buf == nil {
		a.buf = make([]byte, 0, limit)
	}
	a.buf = append(a.buf, b)
	return
}
