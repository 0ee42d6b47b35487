package messages

import (
	"github.com/robotalks/splitkb/pkg/link"
	"github.com/robotalks/splitkb/pkg/wire"
)

// DomToSub is sent by the primary half to the secondary.
type DomToSub interface {
	link.Message
	domToSub()
}

// DomToSub tags.
const (
	TagResyncLeds uint32 = iota
	TagReset
	TagSyncKeypresses
	TagWritePixels
)

// ResyncLeds aligns the LED animation counter of the secondary.
type ResyncLeds struct {
	Counter uint16
}

// Reset asks the secondary to reset.
type Reset struct{}

// SyncKeypresses adds Count to the keypress total of the secondary.
type SyncKeypresses struct {
	Count uint16
}

// WritePixels overwrites one display row of the secondary.
type WritePixels struct {
	Row   uint8
	Data0 [4]byte
	Data1 [4]byte
}

func (ResyncLeds) domToSub()     {}
func (Reset) domToSub()          {}
func (SyncKeypresses) domToSub() {}
func (WritePixels) domToSub()    {}

// MarshalBinary implements link.Message.
func (m ResyncLeds) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(3).Tag(TagResyncLeds).U16(m.Counter).Bytes(), nil
}

// MarshalBinary implements link.Message.
func (m Reset) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(1).Tag(TagReset).Bytes(), nil
}

// MarshalBinary implements link.Message.
func (m SyncKeypresses) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(3).Tag(TagSyncKeypresses).U16(m.Count).Bytes(), nil
}

// MarshalBinary implements link.Message.
func (m WritePixels) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(10).Tag(TagWritePixels).
		U8(m.Row).Bytes4(m.Data0).Bytes4(m.Data1).Bytes(), nil
}

// DecodeDomToSub decodes a DomToSub payload.
func DecodeDomToSub(p []byte) (link.Message, error) {
	dec := wire.NewDecoder(p)
	var msg DomToSub
	switch tag := dec.Tag(); tag {
	case TagResyncLeds:
		msg = ResyncLeds{Counter: dec.U16()}
	case TagReset:
		msg = Reset{}
	case TagSyncKeypresses:
		msg = SyncKeypresses{Count: dec.U16()}
	case TagWritePixels:
		msg = WritePixels{Row: dec.U8(), Data0: dec.Bytes4(), Data1: dec.Bytes4()}
	default:
		unknownTag(dec, "DomToSub", tag)
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

// DomToSubDecoder decodes what the secondary receives.
var DomToSubDecoder = link.DecodeFunc(DecodeDomToSub)

// SubToDom is sent by the secondary half to the primary.
type SubToDom interface {
	link.Message
	subToDom()
	// Coord returns the matrix position of the key.
	Coord() (x, y uint8)
}

// SubToDom tags.
const (
	TagKeyPressed uint32 = iota
	TagKeyReleased
)

// KeyPressed reports a key press on the secondary. Key packs the column
// in the high nibble and the row in the low nibble.
type KeyPressed struct {
	Key uint8
}

// KeyReleased reports a key release on the secondary.
type KeyReleased struct {
	Key uint8
}

func packCoord(x, y uint8) uint8 {
	return (x&0xf)<<4 | y&0xf
}

// KeyPressedAt creates KeyPressed for the key at x, y.
func KeyPressedAt(x, y uint8) KeyPressed {
	return KeyPressed{Key: packCoord(x, y)}
}

// KeyReleasedAt creates KeyReleased for the key at x, y.
func KeyReleasedAt(x, y uint8) KeyReleased {
	return KeyReleased{Key: packCoord(x, y)}
}

func (KeyPressed) subToDom()  {}
func (KeyReleased) subToDom() {}

// Coord implements SubToDom.
func (m KeyPressed) Coord() (x, y uint8) {
	return m.Key >> 4, m.Key & 0xf
}

// Coord implements SubToDom.
func (m KeyReleased) Coord() (x, y uint8) {
	return m.Key >> 4, m.Key & 0xf
}

// MarshalBinary implements link.Message.
func (m KeyPressed) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(2).Tag(TagKeyPressed).U8(m.Key).Bytes(), nil
}

// MarshalBinary implements link.Message.
func (m KeyReleased) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(2).Tag(TagKeyReleased).U8(m.Key).Bytes(), nil
}

// DecodeSubToDom decodes a SubToDom payload.
func DecodeSubToDom(p []byte) (link.Message, error) {
	dec := wire.NewDecoder(p)
	var msg SubToDom
	switch tag := dec.Tag(); tag {
	case TagKeyPressed:
		msg = KeyPressed{Key: dec.U8()}
	case TagKeyReleased:
		msg = KeyReleased{Key: dec.U8()}
	default:
		unknownTag(dec, "SubToDom", tag)
	}
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return msg, nil
}

// SubToDomDecoder decodes what the primary receives from the secondary.
var SubToDomDecoder = link.DecodeFunc(DecodeSubToDom)
