package frame

import (
	"fmt"
	"io"

	"github.com/wmdanor/wsraw/internal"
)

// EncodeText builds an unmasked final text frame carrying payload.
// Payloads longer than MaxExtended16Payload bytes fail with ErrMessageTooLarge.
func EncodeText(payload string) ([]byte, error) {
	length, err := ClassifyLength(len(payload))
	if err != nil {
		return nil, err
	}

	b := make([]byte, 0, HeaderSize(length)+len(payload))
	b = append(b, internal.FinalFrame(internal.OpcodeTextFrame), length.Marker())
	b = length.appendExtended(b)
	b = append(b, payload...)

	return b, nil
}

// WriteText encodes payload and writes the frame to w in a single call.
// Nothing is written when encoding fails.
func WriteText(w io.Writer, payload string) error {
	b, err := EncodeText(payload)
	if err != nil {
		return err
	}

	_, err = w.Write(b)
	if err != nil {
		return fmt.Errorf("%w: failed to write %d byte frame: [%w]", ErrTransportFailure, len(b), err)
	}

	return nil
}
