// Package reactor delivers readable notifications for connections.
//
// Registrations are one-shot: after a notification the source stays disarmed
// until Rearm is called, so at most one callback per source is in flight.
package reactor

import (
	"bufio"
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
)

var (
	ErrCancelled         = errors.New("registration cancelled")
	ErrUnsupportedSource = errors.New("unsupported source")
)

// Source is a connection to watch. Reader is the buffered reader the owner
// reads the connection through.
type Source struct {
	Conn   net.Conn
	Reader *bufio.Reader
}

type Reactor interface {
	// Register starts tracking src. The returned registration is disarmed.
	Register(src Source, onReadable func()) (Registration, error)
	// Run dispatches notifications until ctx is done or the reactor is closed.
	Run(ctx context.Context) error
	Close() error
}

type Registration interface {
	// Rearm requests the next readable notification.
	Rearm() error
	// Cancel stops tracking the source. Call it before closing the connection.
	Cancel() error
}

// call runs a callback so that a panic in it does not take down the reactor.
func call(l *zap.Logger, cb func()) {
	defer func() {
		if r := recover(); r != nil {
			l.Error("readable callback panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	cb()
}
