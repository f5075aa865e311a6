package websocket

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wmdanor/wsraw/frame"
)

// ReadText blocks until one whole frame has been read and returns its text.
// With a read timeout set, the frame must arrive in full before it expires.
func (c *Conn) ReadText() (string, error) {
	if c.readTimeout > 0 {
		err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		if err != nil {
			return "", fmt.Errorf("%w: failed to set read deadline: [%w]", frame.ErrTransportFailure, err)
		}
	}

	f, err := frame.ReadFrame(c.r)
	if err != nil {
		return "", err
	}

	if !f.IsFinalTextFrame() {
		// FIN and opcode are not acted upon, every frame is read as complete text
		c.l.Debug("received frame is not a final text frame",
			zap.Bool("fin", f.Header.IsFinalFrame()),
			zap.Stringer("opcode", f.Header.Opcode()),
			zap.Bool("control", f.Header.Opcode().IsControl()))
	}

	c.l.Debug("read frame",
		zap.Uint16("payloadLength", f.Header.PayloadLength),
		zap.Binary("maskingKey", f.Header.MaskingKey[:]))

	return f.Text()
}
