package websocket

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/pborman/uuid"
	"go.uber.org/zap"

	"github.com/wmdanor/wsraw/reactor"
)

// Conn is an upgraded connection. It is driven by readable notifications and
// is never read from or written to by more than one goroutine at a time.
type Conn struct {
	id string
	l  *zap.Logger

	conn net.Conn
	r    *bufio.Reader

	// encoded frames waiting for the next flush
	pending      *queue.Queue
	writeTimeout time.Duration
	// per frame, applied once a readable notification has fired
	readTimeout time.Duration

	handler Handler
	reg     reactor.Registration

	closeOnce sync.Once
	closeErr  error
	onClose   func(c *Conn)
}

func newConn(netConn net.Conn, reader *bufio.Reader, handler Handler, l *zap.Logger) *Conn {
	id := uuid.New()

	return &Conn{
		id:      id,
		l:       l.With(zap.String("conn", id), zap.Stringer("remote", netConn.RemoteAddr())),
		conn:    netConn,
		r:       reader,
		pending: queue.New(),
		handler: handler,
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
