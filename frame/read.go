package frame

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/wmdanor/wsraw/internal"
)

// ReadFrame reads one masked client frame from r and unmasks its payload.
//
// Reads block until the requested bytes are available. A 127 length marker
// fails with ErrUnsupportedFrameSize before anything past the first two bytes
// is read.
func ReadFrame(r io.Reader) (*Frame, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, h.PayloadLength)
	_, err = io.ReadFull(r, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %d bytes of frame payload: [%w]",
			ErrTransportFailure, h.PayloadLength, err)
	}

	internal.Mask(payload, h.MaskingKey)

	return &Frame{Header: h, Payload: payload}, nil
}

// ReadText reads one client frame and returns its payload as text.
func ReadText(r io.Reader) (string, error) {
	f, err := ReadFrame(r)
	if err != nil {
		return "", err
	}

	return f.Text()
}

// Text returns the payload as a string if it is valid UTF-8.
func (f *Frame) Text() (string, error) {
	if !utf8.Valid(f.Payload) {
		return "", fmt.Errorf("%w: %d byte payload is not valid UTF-8", ErrInvalidEncoding, len(f.Payload))
	}

	return string(f.Payload), nil
}

func readHeader(r io.Reader) (internal.FrameHeader, error) {
	h := internal.FrameHeader{}

	var fixed [2]byte
	_, err := io.ReadFull(r, fixed[:])
	if err != nil {
		return h, fmt.Errorf("%w: failed to read first 2 essential bytes of the frame: [%w]",
			ErrTransportFailure, err)
	}
	b0, b1 := fixed[0], fixed[1]

	h.FinOpcode = b0

	h.IsMasked = b1&maskBit == maskBit
	if !h.IsMasked {
		return h, fmt.Errorf("%w: client frames must set the MASK bit", ErrUnmaskedFrame)
	}

	length, err := readLength(r, b1&lenBits)
	if err != nil {
		return h, err
	}
	h.PayloadLength = uint16(length.Len())

	_, err = io.ReadFull(r, h.MaskingKey[:])
	if err != nil {
		return h, fmt.Errorf("%w: mask bit signaled that next %d bytes must have masking key, but failed to read them: [%w]",
			ErrTransportFailure, maskingKeySize, err)
	}

	return h, nil
}

func readLength(r io.Reader, marker byte) (LengthClass, error) {
	switch {
	case marker <= MaxShortPayload:
		return Short(marker), nil
	case marker == marker16:
		var ext [2]byte
		_, err := io.ReadFull(r, ext[:])
		if err != nil {
			return nil, fmt.Errorf("%w: payload length 126 signaled that next 16 bits must be actual length, but failed to read them: [%w]",
				ErrTransportFailure, err)
		}
		return Extended16(binary.BigEndian.Uint16(ext[:])), nil
	default:
		return nil, fmt.Errorf("%w: payload length %d signals a 64-bit length", ErrUnsupportedFrameSize, marker)
	}
}
