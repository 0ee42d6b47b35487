// Package wire implements the compact binary serialization shared by both
// keyboard halves and the host: enum tags are unsigned varints, integers
// are fixed width little-endian, fixed arrays are raw bytes and variable
// byte strings are prefixed by a varint length.
package wire

import (
	"encoding/binary"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// ErrShortBuffer indicates the input ended in the middle of a value.
	ErrShortBuffer = errors.New("short buffer")
	// ErrTrailingBytes indicates bytes left over after a complete value.
	ErrTrailingBytes = errors.New("trailing bytes")
	// ErrBadVarint indicates an overlong or overflowing varint.
	ErrBadVarint = errors.New("bad varint")
)

// UnknownTagError reports an enum tag with no matching variant.
type UnknownTagError struct {
	Enum string
	Tag  uint32
}

// Error implements error.
func (e *UnknownTagError) Error() string {
	return "unknown " + e.Enum + " tag " + strconv.FormatUint(uint64(e.Tag), 10)
}

// Encoder appends values to a byte slice.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an Encoder with an initial capacity.
func NewEncoder(capacity int) *Encoder {
	return &Encoder{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Tag writes an enum discriminant.
func (e *Encoder) Tag(tag uint32) *Encoder {
	e.buf = binary.AppendUvarint(e.buf, uint64(tag))
	return e
}

// U8 writes a byte.
func (e *Encoder) U8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

// U16 writes a little-endian uint16.
func (e *Encoder) U16(v uint16) *Encoder {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
	return e
}

// U32 writes a little-endian uint32.
func (e *Encoder) U32(v uint32) *Encoder {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
	return e
}

// Bytes4 writes a fixed 4 byte array.
func (e *Encoder) Bytes4(v [4]byte) *Encoder {
	e.buf = append(e.buf, v[:]...)
	return e
}

// Raw appends bytes without a length prefix.
func (e *Encoder) Raw(p []byte) *Encoder {
	e.buf = append(e.buf, p...)
	return e
}

// Blob writes a length-prefixed byte string.
func (e *Encoder) Blob(p []byte) *Encoder {
	e.buf = binary.AppendUvarint(e.buf, uint64(len(p)))
	e.buf = append(e.buf, p...)
	return e
}

// Decoder consumes values from a byte slice. The first error sticks and
// all later reads return zero values.
type Decoder struct {
	data []byte
	err  error
}

// NewDecoder creates a Decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Err returns the first error encountered.
func (d *Decoder) Err() error {
	return d.err
}

// Remaining returns the bytes not consumed yet.
func (d *Decoder) Remaining() []byte {
	return d.data
}

// Finish returns the first error, or ErrTrailingBytes when input is left.
func (d *Decoder) Finish() error {
	if d.err == nil && len(d.data) > 0 {
		d.err = ErrTrailingBytes
	}
	return d.err
}

// Fail records err unless an earlier error exists.
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if len(d.data) < n {
		d.err = ErrShortBuffer
		return nil
	}
	p := d.data[:n]
	d.data = d.data[n:]
	return p
}

// Tag reads an enum discriminant.
func (d *Decoder) Tag() uint32 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.data)
	switch {
	case n == 0:
		d.err = ErrShortBuffer
		return 0
	case n < 0 || v > 0xffffffff:
		d.err = ErrBadVarint
		return 0
	}
	d.data = d.data[n:]
	return uint32(v)
}

// U8 reads a byte.
func (d *Decoder) U8() uint8 {
	if p := d.take(1); p != nil {
		return p[0]
	}
	return 0
}

// U16 reads a little-endian uint16.
func (d *Decoder) U16() uint16 {
	if p := d.take(2); p != nil {
		return binary.LittleEndian.Uint16(p)
	}
	return 0
}

// U32 reads a little-endian uint32.
func (d *Decoder) U32() uint32 {
	if p := d.take(4); p != nil {
		return binary.LittleEndian.Uint32(p)
	}
	return 0
}

// Bytes4 reads a fixed 4 byte array.
func (d *Decoder) Bytes4() (v [4]byte) {
	if p := d.take(4); p != nil {
		copy(v[:], p)
	}
	return
}

// Blob reads a length-prefixed byte string of at most max bytes.
func (d *Decoder) Blob(max int) []byte {
	n := d.Tag()
	if d.err != nil {
		return nil
	}
	if int(n) > max {
		d.err = errors.Errorf("blob length %d exceeds %d", n, max)
		return nil
	}
	p := d.take(int(n))
	if p == nil {
		return nil
	}
	return append([]byte(nil), p...)
}
