package websocket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/panjf2000/ants"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wmdanor/wsraw/reactor"
)

const (
	defaultPoolSize         = 4096
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultReadTimeout      = 10 * time.Second

	// body of the reply to plain HTTP requests
	plainGreeting = "hey there!"

	acceptRetryDelay = 5 * time.Millisecond
)

// Server accepts TCP connections, performs the opening handshake itself and
// then serves every connection from readable notifications. Connections are
// independent of each other.
type Server struct {
	l       *zap.Logger
	handler Handler

	poolSize         int
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	readTimeout      time.Duration

	reactor     reactor.Reactor
	ownsReactor bool
	pool        *ants.Pool

	connCount atomic.Int32
	closed    atomic.Bool

	mu       sync.Mutex
	ln       net.Listener
	stopRun  context.CancelFunc
	runError chan error
}

type Option func(s *Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.l = l
	}
}

func WithHandler(h Handler) Option {
	return func(s *Server) {
		s.handler = h
	}
}

// WithPoolSize bounds how many handshakes and readable events are processed
// concurrently.
func WithPoolSize(size int) Option {
	return func(s *Server) {
		s.poolSize = size
	}
}

// WithHandshakeTimeout bounds reading the upgrade request and writing the
// response. Zero disables the deadline.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.handshakeTimeout = d
	}
}

// WithWriteTimeout bounds every flush of reply frames. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithReadTimeout bounds reading one frame once a readable notification has
// fired, so a client that stops mid-frame cannot hold a worker. Zero disables
// the deadline.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readTimeout = d
	}
}

// WithReactor replaces the platform reactor. The server does not close it.
func WithReactor(r reactor.Reactor) Option {
	return func(s *Server) {
		s.reactor = r
	}
}

func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		l:                zap.NewNop(),
		handler:          Echo,
		poolSize:         defaultPoolSize,
		handshakeTimeout: defaultHandshakeTimeout,
		writeTimeout:     defaultWriteTimeout,
		readTimeout:      defaultReadTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool of size %d: [%w]", s.poolSize, err)
	}
	s.pool = pool

	if s.reactor == nil {
		r, err := reactor.New(s.l)
		if err != nil {
			s.pool.Release()
			return nil, fmt.Errorf("failed to create reactor: [%w]", err)
		}
		s.reactor = r
		s.ownsReactor = true
	}

	return s, nil
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: [%w]", addr, err)
	}

	return s.Serve(ln)
}

// Serve accepts connections on ln until Close is called. Errors of a single
// connection are logged and never stop the accept loop.
func (s *Server) Serve(ln net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())
	runError := make(chan error, 1)

	s.mu.Lock()
	s.ln = ln
	s.stopRun = cancel
	s.runError = runError
	s.mu.Unlock()

	go func() {
		err := s.reactor.Run(ctx)
		if err != nil {
			s.l.Error("reactor stopped", zap.Error(err))
		}
		runError <- err
	}()

	s.l.Info("Accepting connections", zap.Stringer("addr", ln.Addr()))

	for {
		netConn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.l.Error("Failed to accept connection", zap.Error(err))
			time.Sleep(acceptRetryDelay)
			continue
		}

		err = s.submit(func() {
			s.serveConn(netConn)
		})
		if err != nil {
			s.l.Error("Failed to schedule connection", zap.Error(err))
			netConn.Close()
		}
	}
}

// Addr is the listening address, nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ConnCount is the number of upgraded connections currently open.
func (s *Server) ConnCount() int {
	return int(s.connCount.Load())
}

// Close stops accepting connections and stops the reactor. Upgraded
// connections are not tracked and are not closed: nothing serves them after
// Close, and their sockets stay open until the peer hangs up or the process
// exits. ConnCount keeps reporting them. Close is meant for shutdown.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	ln, stopRun, runError := s.ln, s.stopRun, s.runError
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = multierr.Append(err, ln.Close())
	}
	if stopRun != nil {
		stopRun()
	}
	if s.ownsReactor {
		err = multierr.Append(err, s.reactor.Close())
	}
	if runError != nil {
		<-runError
	}

	s.pool.Release()

	return err
}

func (s *Server) submit(task func()) error {
	return s.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				s.l.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		task()
	})
}

func (s *Server) serveConn(netConn net.Conn) {
	l := s.l.With(zap.Stringer("remote", netConn.RemoteAddr()))

	br := bufio.NewReader(netConn)
	err := s.handshake(netConn, br)
	if err != nil {
		if errors.Is(err, ErrNotUpgrade) {
			l.Debug("Answered plain HTTP request", zap.Error(err))
		} else {
			l.Info("Opening handshake failed", zap.Error(err))
		}
		netConn.Close()
		return
	}

	c := newConn(netConn, br, s.handler, s.l)
	c.writeTimeout = s.writeTimeout
	c.readTimeout = s.readTimeout

	reg, err := s.reactor.Register(reactor.Source{Conn: netConn, Reader: br}, func() {
		err := s.submit(c.handleReadable)
		if err != nil {
			c.fatal(fmt.Errorf("failed to schedule readable event: [%w]", err))
		}
	})
	if err != nil {
		c.fatal(fmt.Errorf("failed to register connection: [%w]", err))
		return
	}
	c.reg = reg

	s.connCount.Inc()
	c.onClose = func(c *Conn) {
		s.connCount.Dec()
	}

	c.l.Debug("New websocket connection opened")

	// the client may have sent frames together with the upgrade request
	if br.Buffered() > 0 {
		c.handleReadable()
		return
	}

	err = reg.Rearm()
	if err != nil {
		c.fatal(fmt.Errorf("failed to watch connection: [%w]", err))
	}
}

// handshake reads the upgrade request and answers it. Plain HTTP requests get
// a greeting, invalid upgrades a 400.
func (s *Server) handshake(netConn net.Conn, br *bufio.Reader) error {
	if s.handshakeTimeout > 0 {
		err := netConn.SetReadDeadline(time.Now().Add(s.handshakeTimeout))
		if err != nil {
			return fmt.Errorf("failed to set handshake deadline: [%w]", err)
		}
		defer netConn.SetDeadline(time.Time{})
	}

	key, err := ReadHandshake(br)
	switch {
	case errors.Is(err, ErrNotUpgrade):
		return multierr.Append(err, s.respond(netConn, plainResponse(200, plainGreeting)))
	case err != nil:
		return multierr.Append(err, s.respond(netConn, plainResponse(400, err.Error())))
	}

	err = s.respond(netConn, HandshakeResponse(key))
	if err != nil {
		return fmt.Errorf("failed to write handshake response: [%w]", err)
	}

	return nil
}

func (s *Server) respond(netConn net.Conn, response string) error {
	if s.handshakeTimeout > 0 {
		err := netConn.SetWriteDeadline(time.Now().Add(s.handshakeTimeout))
		if err != nil {
			return err
		}
	}

	_, err := io.WriteString(netConn, response)
	return err
}
