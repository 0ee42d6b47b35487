// Package messages defines the application messages carried by the links:
// between the primary and the secondary half, and between the primary
// half and the host.
//
// Each family is a closed set of types implementing a marker interface;
// the first byte of a payload is the variant tag.
package messages

import (
	"github.com/robotalks/splitkb/pkg/wire"
)

func unknownTag(dec *wire.Decoder, enum string, tag uint32) {
	if dec.Err() == nil {
		dec.Fail(&wire.UnknownTagError{Enum: enum, Tag: tag})
	}
}
