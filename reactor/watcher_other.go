//go:build !linux

package reactor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// watcherReactor emulates readiness with one goroutine per source blocking
// on a one-byte Peek of the source's buffered reader.
type watcherReactor struct {
	l *zap.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

func New(l *zap.Logger) (Reactor, error) {
	if l == nil {
		l = zap.NewNop()
	}

	return &watcherReactor{
		l:      l,
		closed: make(chan struct{}),
	}, nil
}

func (r *watcherReactor) Register(src Source, onReadable func()) (Registration, error) {
	if src.Reader == nil {
		return nil, fmt.Errorf("%w: source has no buffered reader", ErrUnsupportedSource)
	}

	reg := &watchRegistration{
		rearm: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	go reg.watch(r, src, onReadable)

	return reg, nil
}

func (r *watcherReactor) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-r.closed:
	}
	return nil
}

func (r *watcherReactor) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)
	})
	return nil
}

type watchRegistration struct {
	rearm chan struct{}

	done       chan struct{}
	cancelOnce sync.Once
}

func (reg *watchRegistration) watch(r *watcherReactor, src Source, onReadable func()) {
	for {
		select {
		case <-reg.done:
			return
		case <-r.closed:
			return
		case <-reg.rearm:
		}

		// errors surface to the owner on its next read
		_, _ = src.Reader.Peek(1)

		select {
		case <-reg.done:
			return
		default:
		}

		call(r.l, onReadable)
	}
}

func (reg *watchRegistration) Rearm() error {
	select {
	case <-reg.done:
		return ErrCancelled
	default:
	}

	select {
	case reg.rearm <- struct{}{}:
	default:
	}

	return nil
}

func (reg *watchRegistration) Cancel() error {
	reg.cancelOnce.Do(func() {
		close(reg.done)
	})
	return nil
}
