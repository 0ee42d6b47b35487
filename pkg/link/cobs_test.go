package link

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeFrame(t *testing.T) {
	long := bytes.Repeat([]byte{0x5a}, 254)
	cases := []struct {
		name    string
		payload []byte
		frame   []byte
	}{
		{"empty", nil, []byte{0x01, 0x00}},
		{"zero", []byte{0x00}, []byte{0x01, 0x01, 0x00}},
		{"zeros", []byte{0x00, 0x00}, []byte{0x01, 0x01, 0x01, 0x00}},
		{"mixed", []byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33, 0x00}},
		{"trailing zero", []byte{0x11, 0x00}, []byte{0x02, 0x11, 0x01, 0x00}},
		{"full block", long, append(append([]byte{0xff}, long...), 0x01, 0x00)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame, err := EncodeFrameLimit(c.payload, 0)
			require.NoError(t, err)
			require.Equal(t, c.frame, frame)
			require.Equal(t, 1, bytes.Count(frame, []byte{0}))
			decoded, err := DecodeFrame(frame[:len(frame)-1])
			require.NoError(t, err)
			require.Equal(t, len(c.payload), len(decoded))
			if len(c.payload) > 0 {
				require.Equal(t, c.payload, decoded)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for size := 0; size < 600; size++ {
		payload := make([]byte, size)
		rnd.Read(payload)
		// Plenty of delimiter values in the payload.
		for i := range payload {
			if rnd.Intn(4) == 0 {
				payload[i] = 0
			}
		}
		frame, err := EncodeFrameLimit(payload, 0)
		require.NoError(t, err)
		require.Equal(t, -1, bytes.IndexByte(frame[:len(frame)-1], 0))

		acc := NewAccumulator(len(frame))
		var got *FeedResult
		for i, b := range frame {
			fr := acc.Feed(b)
			if i < len(frame)-1 {
				require.Equal(t, FeedIncomplete, fr.Status, "size %d byte %d", size, i)
			} else {
				got = &fr
			}
		}
		require.Equal(t, FeedFrameReady, got.Status)
		require.True(t, bytes.Equal(payload, got.Frame), "size %d", size)
	}
}

func TestEncodeFrameLimit(t *testing.T) {
	// 126 non-zero bytes: code + 126 + delimiter.
	frame, err := EncodeFrame(bytes.Repeat([]byte{1}, 126))
	require.NoError(t, err)
	require.Len(t, frame, MaxFrameSize)

	_, err = EncodeFrame(bytes.Repeat([]byte{1}, 127))
	require.Equal(t, ErrFrameTooLarge, err)
}

func TestDecodeFrameMalformed(t *testing.T) {
	for _, frame := range [][]byte{
		{0x05, 0x11, 0x22},
		{0x02, 0x00},
		{0x00},
		{0x03, 0x11, 0x00},
	} {
		_, err := DecodeFrame(frame)
		require.Equal(t, ErrMalformedFrame, err, "% x", frame)
	}
}

func feedAll(acc *Accumulator, data []byte) (frames [][]byte, statuses []FeedStatus) {
	for _, b := range data {
		fr := acc.Feed(b)
		switch fr.Status {
		case FeedIncomplete:
		case FeedFrameReady:
			frames = append(frames, fr.Frame)
			statuses = append(statuses, fr.Status)
		default:
			statuses = append(statuses, fr.Status)
		}
	}
	return
}

func TestAccumulatorResync(t *testing.T) {
	first, err := EncodeFrame([]byte{0x01, 0x00, 0x02})
	require.NoError(t, err)
	partial, err := EncodeFrame([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	partial = append(partial[:2], 0x00)
	second, err := EncodeFrame([]byte{0x00, 0x09})
	require.NoError(t, err)

	var stream []byte
	stream = append(stream, first...)
	stream = append(stream, partial...)
	stream = append(stream, second...)
	frames, statuses := feedAll(&Accumulator{}, stream)
	require.Equal(t, [][]byte{{0x01, 0x00, 0x02}, {0x00, 0x09}}, frames)
	require.Equal(t, []FeedStatus{FeedFrameReady, FeedMalformed, FeedFrameReady}, statuses)
}

func TestAccumulatorOversized(t *testing.T) {
	valid, err := EncodeFrame([]byte{0x42})
	require.NoError(t, err)

	var stream []byte
	stream = append(stream, bytes.Repeat([]byte{0x07}, 300)...)
	stream = append(stream, 0x00)
	stream = append(stream, valid...)
	frames, statuses := feedAll(&Accumulator{}, stream)
	require.Equal(t, []FeedStatus{FeedOversized, FeedFrameReady}, statuses)
	require.Equal(t, [][]byte{{0x42}}, frames)
}

func TestAccumulatorLargestFrame(t *testing.T) {
	payload := bytes.Repeat([]byte{0x33}, 126)
	frame, err := EncodeFrame(payload)
	require.NoError(t, err)
	frames, statuses := feedAll(&Accumulator{}, frame)
	require.Equal(t, []FeedStatus{FeedFrameReady}, statuses)
	require.Equal(t, payload, frames[0])
}

func TestAccumulatorSkipsEmptyFrames(t *testing.T) {
	valid, err := EncodeFrame([]byte{0x10, 0x20})
	require.NoError(t, err)
	frames, statuses := feedAll(&Accumulator{}, append([]byte{0, 0, 0}, valid...))
	require.Equal(t, []FeedStatus{FeedFrameReady}, statuses)
	require.Equal(t, [][]byte{{0x10, 0x20}}, frames)
}
