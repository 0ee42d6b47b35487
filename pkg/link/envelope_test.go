package link

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/splitkb/pkg/wire"
)

type testMsg uint16

func (m testMsg) MarshalBinary() ([]byte, error) {
	return wire.NewEncoder(3).Tag(0).U16(uint16(m)).Bytes(), nil
}

// testBlob marshals to its own bytes, for size limits.
type testBlob []byte

func (m testBlob) MarshalBinary() ([]byte, error) {
	return m, nil
}

var testDecoder = DecodeFunc(func(p []byte) (Message, error) {
	dec := wire.NewDecoder(p)
	if tag := dec.Tag(); tag != 0 && dec.Err() == nil {
		dec.Fail(&wire.UnknownTagError{Enum: "testMsg", Tag: tag})
	}
	v := dec.U16()
	if err := dec.Finish(); err != nil {
		return nil, err
	}
	return testMsg(v), nil
})

func TestIDGenerator(t *testing.T) {
	g := NewIDGenerator(5)
	require.Equal(t, ID(5), g.Next())
	require.Equal(t, ID(6), g.Next())
	require.Equal(t, ID(7), g.Peek())

	g = NewIDGenerator(255)
	require.Equal(t, ID(255), g.Next())
	require.Equal(t, ID(0), g.Next())
}

func TestEnvelopeWireLayout(t *testing.T) {
	payload, err := testMsg(42).MarshalBinary()
	require.NoError(t, err)
	cmd := NewCommand(5, payload)
	require.Equal(t, uint8(0x4c), cmd.Checksum)
	require.True(t, cmd.Valid())
	data, err := cmd.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x05, 0x4c, 0x00, 0x2a, 0x00}, data)

	decoded, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, cmd, decoded)

	ack := cmd.Ack()
	require.Equal(t, NewAck(5), ack)
	data, err = ack.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x05, 0x70}, data)
	decoded, err = UnmarshalEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, ack, decoded)
	require.True(t, decoded.Valid())
}

func TestEnvelopeInvalid(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte{0x02, 0x01, 0x02})
	require.Equal(t, ErrUnknownKind, err)
	_, err = UnmarshalEnvelope([]byte{0x00, 0x01})
	require.Equal(t, wire.ErrShortBuffer, err)
	_, err = UnmarshalEnvelope([]byte{0x01, 0x05, 0x70, 0x00})
	require.Equal(t, wire.ErrTrailingBytes, err)

	cmd := NewCommand(7, []byte{0x00, 0x2a, 0x00})
	cmd.Checksum ^= 0xff
	require.False(t, cmd.Valid())
	ack := NewAck(7)
	ack.ID = 8
	require.False(t, ack.Valid())
	_, err = Envelope{Kind: 3}.MarshalBinary()
	require.Equal(t, ErrUnknownKind, err)
}

func TestEnvelopeVerify(t *testing.T) {
	require.NoError(t, NewAck(4).Verify())
	require.NoError(t, NewCommand(4, []byte{1, 2}).Verify())

	ack := NewAck(4)
	ack.Checksum ^= 0xff
	err := ack.Verify()
	require.Error(t, err)
	require.Equal(t, ErrChecksum, errors.Cause(err))
	require.Contains(t, err.Error(), "decode checksum")

	cmd := NewCommand(4, []byte{1, 2})
	cmd.Payload = []byte{1, 3}
	require.Equal(t, ErrChecksum, errors.Cause(cmd.Verify()))
}
