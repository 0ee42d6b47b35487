package messages

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/robotalks/splitkb/pkg/link"
	"github.com/robotalks/splitkb/pkg/wire"
)

// MaxLogSize bounds the text of a Log message.
const MaxLogSize = 60

// ErrLogTooLong is returned when marshaling a Log over MaxLogSize.
var ErrLogTooLong = errors.New("log text too long")

// Side selects a keyboard half.
type Side uint8

// Sides.
const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

// ParseSide parses "left" or "right".
func ParseSide(str string) (Side, error) {
	switch str {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	}
	return 0, errors.Errorf("invalid side %q", str)
}

// HostToKeyboard is sent by the host to the primary half.
type HostToKeyboard interface {
	link.Message
	hostToKeyboard()
}

// HostToKeyboard tags.
const (
	TagRequestStats uint32 = iota
	TagHostWritePixels
)

// RequestStats asks for a Stats reply.
type RequestStats struct{}

// HostWritePixels overwrites one display row on the given side.
type HostWritePixels struct {
	Side  Side
	Row   uint8
	Data0 [4]byte
	Data1 [4]byte
}

func (RequestStats) hostToKeyboard()    {}
func (HostWritePixels) hostToKeyboard() {}

// MarshalBinary implements link.Message.
func (m RequestStats) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(1).Tag(TagRequestStats).Bytes(), nil
}

// MarshalBinary implements link.Message.
func (m HostWritePixels) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(11).Tag(TagHostWritePixels).
		Tag(uint32(m.Side)).U8(m.Row).Bytes4(m.Data0).Bytes4(m.Data1).Bytes(), nil
}

// DecodeHostToKeyboard decodes a HostToKeyboard payload.
func DecodeHostToKeyboard(p []byte) (link.Message, error) {
	dec := wire.NewDecoder(p)
	var msg HostToKeyboard
	switch tag := dec.Tag(); tag {
	case TagRequestStats:
		msg = RequestStats{}
	case TagHostWritePixels:
		m := HostWritePixels{}
		switch side := dec.Tag(); Side(side) {
		case Left, Right:
			m.Side = Side(side)
		default:
			unknownTag(dec, "KeyboardSide", side)
		}
		m.Row, m.Data0, m.Data1 = dec.U8(), dec.Bytes4(), dec.Bytes4()
		msg = m
	default:
		unknownTag(dec, "HostToKeyboard", tag)
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

// HostToKeyboardDecoder decodes what the primary receives from the host.
var HostToKeyboardDecoder = link.DecodeFunc(DecodeHostToKeyboard)

// KeyboardToHost is sent by the primary half to the host.
type KeyboardToHost interface {
	link.Message
	keyboardToHost()
}

// KeyboardToHost tags.
const (
	TagStats uint32 = iota
	TagLog
)

// Stats reports the total keypresses of both halves.
type Stats struct {
	Keypresses uint32
}

// Log carries a line of text for the host console.
type Log struct {
	Text string
}

func (Stats) keyboardToHost() {}
func (Log) keyboardToHost()   {}

// MarshalBinary implements link.Message.
func (m Stats) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(5).Tag(TagStats).U32(m.Keypresses).Bytes(), nil
}

// MarshalBinary implements link.Message.
func (m Log) MarshalBinary() ([]byte, error) {
	if len(m.Text) > MaxLogSize {
		return nil, ErrLogTooLong
	}
	return wire.NewEncoder(2 + len(m.Text)).Tag(TagLog).Blob([]byte(m.Text)).Bytes(), nil
}

// DecodeKeyboardToHost decodes a KeyboardToHost payload.
func DecodeKeyboardToHost(p []byte) (link.Message, error) {
	dec := wire.NewDecoder(p)
	var msg KeyboardToHost
	switch tag := dec.Tag(); tag {
	case TagStats:
		msg = Stats{Keypresses: dec.U32()}
	case TagLog:
		msg = Log{Text: string(dec.Blob(MaxLogSize))}
	default:
		unknownTag(dec, "KeyboardToHost", tag)
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

// KeyboardToHostDecoder decodes what the host receives.
var KeyboardToHostDecoder = link.DecodeFunc(DecodeKeyboardToHost)
