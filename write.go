package websocket

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/wmdanor/wsraw/frame"
)

// WriteText encodes text as a frame and writes it together with any frames
// still queued.
func (c *Conn) WriteText(text string) error {
	err := c.queueText(text)
	if err != nil {
		return err
	}

	return c.flush()
}

// queueText encodes text now so an oversized reply fails before anything
// reaches the socket.
func (c *Conn) queueText(text string) error {
	b, err := frame.EncodeText(text)
	if err != nil {
		return fmt.Errorf("failed to encode reply: [%w]", err)
	}

	c.pending.Add(b)

	return nil
}

func (c *Conn) flush() error {
	if c.pending.Length() == 0 {
		return nil
	}

	bufs := make(net.Buffers, 0, c.pending.Length())
	for c.pending.Length() > 0 {
		bufs = append(bufs, c.pending.Remove().([]byte))
	}
	frames := len(bufs)

	if c.writeTimeout > 0 {
		err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		if err != nil {
			return fmt.Errorf("%w: failed to set write deadline: [%w]", frame.ErrTransportFailure, err)
		}
	}

	n, err := bufs.WriteTo(c.conn)
	if err != nil {
		return fmt.Errorf("%w: failed to write %d frames, %d bytes written: [%w]",
			frame.ErrTransportFailure, frames, n, err)
	}

	c.l.Debug("wrote frames", zap.Int("frames", frames), zap.Int64("bytes", n))

	return nil
}
