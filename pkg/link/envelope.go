package link

import (
	"fmt"

	"github.com/robotalks/splitkb/pkg/wire"
)

// Message is an application payload carried by a Command.
type Message interface {
	MarshalBinary() ([]byte, error)
}

// Decoder turns a received payload back into a Message. It must consume
// the whole payload.
type Decoder interface {
	DecodeMessage([]byte) (Message, error)
}

// DecodeFunc is func form of Decoder.
type DecodeFunc func([]byte) (Message, error)

// DecodeMessage implements Decoder.
func (f DecodeFunc) DecodeMessage(p []byte) (Message, error) {
	return f(p)
}

// Kind tells a Command from an Ack on the wire.
type Kind uint32

// Envelope kinds, in wire tag order.
const (
	KindCommand Kind = 0
	KindAck     Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "Cmd"
	case KindAck:
		return "Ack"
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Envelope is what crosses the wire: a Command with its serialized
// payload, or an Ack.
type Envelope struct {
	Kind     Kind
	ID       ID
	Checksum uint8
	Payload  []byte
}

// NewCommand wraps a serialized payload with id and its checksum.
func NewCommand(id ID, payload []byte) Envelope {
	return Envelope{
		Kind:     KindCommand,
		ID:       id,
		Checksum: CommandChecksum(payload, id),
		Payload:  payload,
	}
}

// NewAck creates the Ack for id.
func NewAck(id ID) Envelope {
	return Envelope{Kind: KindAck, ID: id, Checksum: AckChecksum(id)}
}

// Ack creates the Ack answering this Command.
func (e Envelope) Ack() Envelope {
	return NewAck(e.ID)
}

// Valid recomputes the checksum and compares it with the one carried.
func (e Envelope) Valid() bool {
	switch e.Kind {
	case KindCommand:
		return CommandChecksum(e.Payload, e.ID) == e.Checksum
	case KindAck:
		return AckChecksum(e.ID) == e.Checksum
	}
	return false
}

// Verify returns a DecodeError wrapping ErrChecksum when the envelope is
// not Valid.
func (e Envelope) Verify() error {
	if !e.Valid() {
		return &DecodeError{Stage: "checksum", Err: ErrChecksum}
	}
	return nil
}

// MarshalBinary encodes the envelope: tag, id, checksum, then the payload
// for a Command.
func (e Envelope) MarshalBinary() ([]byte, error) {
	if e.Kind != KindCommand && e.Kind != KindAck {
		return nil, ErrUnknownKind
	}
	enc := wire.NewEncoder(3 + len(e.Payload))
	enc.Tag(uint32(e.Kind)).U8(uint8(e.ID)).U8(e.Checksum)
	if e.Kind == KindCommand {
		enc.Raw(e.Payload)
	}
	return enc.Bytes(), nil
}

// UnmarshalEnvelope decodes an envelope. The checksum is not verified.
func UnmarshalEnvelope(data []byte) (e Envelope, err error) {
	dec := wire.NewDecoder(data)
	e.Kind = Kind(dec.Tag())
	e.ID = ID(dec.U8())
	e.Checksum = dec.U8()
	if err = dec.Err(); err != nil {
		return
	}
	switch e.Kind {
	case KindCommand:
		e.Payload = append([]byte(nil), dec.Remaining()...)
	case KindAck:
		err = dec.Finish()
	default:
		err = ErrUnknownKind
	}
	return
}

func (e Envelope) String() string {
	if e.Kind == KindCommand {
		return fmt.Sprintf("%s{id=%d csum=%#02x len=%d}", e.Kind, e.ID, e.Checksum, len(e.Payload))
	}
	return fmt.Sprintf("%s{id=%d csum=%#02x}", e.Kind, e.ID, e.Checksum)
}
