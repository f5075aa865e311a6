package websocket

import (
	"errors"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wmdanor/wsraw/frame"
)

// Close stops watching the connection and closes the socket. There is no
// closing handshake. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.reg != nil {
			c.closeErr = multierr.Append(c.closeErr, c.reg.Cancel())
		}
		c.closeErr = multierr.Append(c.closeErr, c.conn.Close())

		if c.onClose != nil {
			c.onClose(c)
		}
	})

	return c.closeErr
}

// fatal ends the connection after a codec or transport error.
// The given error is returned joined with any close error.
func (c *Conn) fatal(err error) error {
	switch {
	case errors.Is(err, io.EOF):
		c.l.Debug("connection closed by peer")
	case errors.Is(err, frame.ErrTransportFailure):
		c.l.Info("connection lost, closing connection", zap.Error(err))
	default:
		c.l.Warn("connection fatal error, closing connection", zap.Error(err))
	}

	closeErr := c.Close()
	if closeErr != nil {
		c.l.Debug("failed to close connection cleanly", zap.Error(closeErr))
	}

	return multierr.Append(err, closeErr)
}
