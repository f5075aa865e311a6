package websocket

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wmdanor/wsraw/frame"
)

// handleReadable runs once per readable notification. It keeps reading while
// the buffered reader holds bytes, since those were already pulled off the
// socket and will not produce another notification.
func (c *Conn) handleReadable() {
	defer func() {
		if r := recover(); r != nil {
			c.l.Error("readable event panicked", zap.Any("panic", r), zap.Stack("stack"))
			c.fatal(fmt.Errorf("panic while handling readable event: %v", r))
		}
	}()

	for {
		text, err := c.ReadText()
		if err != nil {
			c.fatal(err)
			return
		}

		reply, err := c.handler.HandleMessage(text)
		if err != nil {
			c.l.Warn("handler rejected message, dropping it", zap.Error(err))
		} else {
			err = c.queueText(reply)
			if err != nil {
				c.fatal(err)
				return
			}
		}

		if c.r.Buffered() == 0 {
			break
		}
	}

	// an idle connection waits for its next notification without a deadline
	if c.readTimeout > 0 {
		err := c.conn.SetReadDeadline(time.Time{})
		if err != nil {
			c.fatal(fmt.Errorf("%w: failed to clear read deadline: [%w]", frame.ErrTransportFailure, err))
			return
		}
	}

	err := c.flush()
	if err != nil {
		c.fatal(err)
		return
	}

	err = c.reg.Rearm()
	if err != nil {
		c.fatal(err)
	}
}
