package websocket

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/pborman/uuid"
	"go.uber.org/zap"

	"github.com/wmdanor/wsraw/frame"
)

func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()

	server, client := net.Pipe()
	c := newConn(server, bufio.NewReader(server), Echo, zap.NewNop())
	t.Cleanup(func() {
		c.Close()
		client.Close()
	})
	client.SetDeadline(time.Now().Add(testTimeout))

	return c, client
}

func TestConnIdentity(t *testing.T) {
	c1, _ := pipeConn(t)
	c2, _ := pipeConn(t)

	if uuid.Parse(c1.ID()) == nil {
		t.Errorf("ID() = %q, ERROR expected a uuid", c1.ID())
	}
	if c1.ID() == c2.ID() {
		t.Errorf("ID() = %q for two connections, ERROR expected distinct ids", c1.ID())
	}
	if c1.RemoteAddr() != c1.conn.RemoteAddr() {
		t.Errorf("RemoteAddr() = %v, ERROR expected %v", c1.RemoteAddr(), c1.conn.RemoteAddr())
	}
}

func TestConnWriteText(t *testing.T) {
	c, client := pipeConn(t)

	errs := make(chan error, 1)
	go func() {
		errs <- c.WriteText("pong")
	}()

	f, err := ws.ReadFrame(client)
	if err != nil {
		t.Fatalf("ws.ReadFrame, ERROR returned unexpected error %q", err.Error())
	}
	if !f.Header.Fin || f.Header.OpCode != ws.OpText || f.Header.Masked || string(f.Payload) != "pong" {
		t.Errorf("frame = %+v %q, ERROR expected final unmasked text frame %q", f.Header, f.Payload, "pong")
	}

	err = <-errs
	if err != nil {
		t.Errorf("WriteText, ERROR returned unexpected error %q", err.Error())
	}
	if c.pending.Length() != 0 {
		t.Errorf("%d frames left queued, ERROR expected none", c.pending.Length())
	}
}

func TestConnWriteTextTooLarge(t *testing.T) {
	c, _ := pipeConn(t)

	// net.Pipe is unbuffered: any write would block here with nobody reading
	err := c.WriteText(strings.Repeat("x", frame.MaxExtended16Payload+1))
	if !errors.Is(err, frame.ErrMessageTooLarge) {
		t.Errorf("WriteText(65537 bytes) = %v, ERROR expected %v", err, frame.ErrMessageTooLarge)
	}
	if c.pending.Length() != 0 {
		t.Errorf("%d frames queued, ERROR expected none", c.pending.Length())
	}
}

func TestConnReadTextTimeout(t *testing.T) {
	c, client := pipeConn(t)
	c.readTimeout = 50 * time.Millisecond

	go client.Write([]byte{0x81})

	_, err := c.ReadText()
	if !errors.Is(err, frame.ErrTransportFailure) {
		t.Errorf("ReadText of a stalled frame = %v, ERROR expected %v", err, frame.ErrTransportFailure)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("ReadText of a stalled frame = %v, ERROR expected a timeout", err)
	}
}
