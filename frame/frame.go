// Package frame encodes server text frames and decodes masked client frames.
//
// Only the 7-bit and 16-bit payload length classes are supported and every
// frame is treated as a complete text frame: there is no fragmentation and no
// control frame handling.
package frame

import (
	"errors"

	"github.com/wmdanor/wsraw/internal"
)

/*
  0                   1                   2                   3
  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
 +-+-+-+-+-------+-+-------------+-------------------------------+
 |F|R|R|R| opcode|M| Payload len |    Extended payload length    |
 |I|S|S|S|  (4)  |A|     (7)     |             (16/64)           |
 |N|V|V|V|       |S|             |   (if payload len==126/127)   |
 | |1|2|3|       |K|             |                               |
 +-+-+-+-+-------+-+-------------+ - - - - - - - - - - - - - - - +
 |     Extended payload length continued, if payload len == 127  |
 + - - - - - - - - - - - - - - - +-------------------------------+
 |                               |Masking-key, if MASK set to 1  |
 +-------------------------------+-------------------------------+
 | Masking-key (continued)       |          Payload Data         |
 +-------------------------------- - - - - - - - - - - - - - - - +
 :                     Payload Data continued ...                :
 + - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - +
 |                     Payload Data continued ...                |
 +---------------------------------------------------------------+
*/

var (
	// Inbound frame announces a 64-bit payload length.
	ErrUnsupportedFrameSize = errors.New("unsupported frame size")
	// Outbound payload does not fit the 16-bit length class.
	ErrMessageTooLarge = errors.New("message too large")
	// Unmasked payload is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid encoding")
	// Underlying stream could not supply or accept the bytes.
	ErrTransportFailure = errors.New("transport failure")
	// Inbound frame has the MASK bit cleared.
	ErrUnmaskedFrame = errors.New("unmasked client frame")
)

const (
	maskBit byte = 0b1_0000000
	lenBits byte = 0b0_1111111

	maskingKeySize = 4
)

// Frame is a decoded client frame. Payload is already unmasked and owned by
// the frame.
type Frame struct {
	Header  internal.FrameHeader
	Payload []byte
}

// IsFinalTextFrame reports whether the frame is what this codec assumes every
// frame to be: a final, unfragmented text frame.
func (f *Frame) IsFinalTextFrame() bool {
	return f.Header.IsFinalFrame() && f.Header.Opcode() == internal.OpcodeTextFrame
}
