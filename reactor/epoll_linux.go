//go:build linux

package reactor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	watchEvents = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLONESHOT

	maxEvents = 128
	// bounds how long Run takes to notice ctx cancellation
	pollTimeoutMs = 100
)

// epollReactor watches sockets with a private epoll instance. The Go runtime
// keeps its own registration of the same descriptors, so reads through
// net.Conn still park the calling goroutine until data arrives.
type epollReactor struct {
	epfd int
	l    *zap.Logger

	mu            sync.Mutex
	registrations map[int32]*epollRegistration

	nextID atomic.Int32
	closed atomic.Bool
}

func New(l *zap.Logger) (Reactor, error) {
	if l == nil {
		l = zap.NewNop()
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: [%w]", err)
	}

	return &epollReactor{
		epfd:          epfd,
		l:             l,
		registrations: make(map[int32]*epollRegistration),
	}, nil
}

func (r *epollReactor) Register(src Source, onReadable func()) (Registration, error) {
	fd, err := sourceFd(src)
	if err != nil {
		return nil, err
	}

	reg := &epollRegistration{
		r:          r,
		id:         r.nextID.Inc(),
		fd:         fd,
		onReadable: onReadable,
	}

	r.mu.Lock()
	r.registrations[reg.id] = reg
	r.mu.Unlock()

	return reg, nil
}

func (r *epollReactor) Run(ctx context.Context) error {
	events := make([]unix.EpollEvent, maxEvents)

	for ctx.Err() == nil {
		n, err := unix.EpollWait(r.epfd, events, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if r.closed.Load() {
				return nil
			}
			return fmt.Errorf("epoll wait: [%w]", err)
		}

		for i := 0; i < n; i++ {
			// Pad carries the registration id, a stale event for a reused fd finds nothing
			r.mu.Lock()
			reg, ok := r.registrations[events[i].Pad]
			r.mu.Unlock()
			if !ok {
				continue
			}

			call(r.l, reg.onReadable)
		}
	}

	return nil
}

func (r *epollReactor) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(r.epfd)
}

type epollRegistration struct {
	r          *epollReactor
	id         int32
	fd         int
	onReadable func()

	mu        sync.Mutex
	added     bool
	cancelled bool
}

func (reg *epollRegistration) Rearm() error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.cancelled {
		return ErrCancelled
	}

	ev := unix.EpollEvent{Events: watchEvents, Fd: int32(reg.fd), Pad: reg.id}

	op := unix.EPOLL_CTL_MOD
	if !reg.added {
		op = unix.EPOLL_CTL_ADD
	}

	err := unix.EpollCtl(reg.r.epfd, op, reg.fd, &ev)
	if err != nil {
		return fmt.Errorf("epoll ctl fd %d: [%w]", reg.fd, err)
	}
	reg.added = true

	return nil
}

func (reg *epollRegistration) Cancel() error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.cancelled {
		return nil
	}
	reg.cancelled = true

	reg.r.mu.Lock()
	delete(reg.r.registrations, reg.id)
	reg.r.mu.Unlock()

	if !reg.added {
		return nil
	}

	err := unix.EpollCtl(reg.r.epfd, unix.EPOLL_CTL_DEL, reg.fd, nil)
	if err != nil && !errors.Is(err, unix.ENOENT) && !errors.Is(err, unix.EBADF) {
		return fmt.Errorf("epoll ctl del fd %d: [%w]", reg.fd, err)
	}

	return nil
}

func sourceFd(src Source) (int, error) {
	sc, ok := src.Conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("%w: %T does not expose a file descriptor", ErrUnsupportedSource, src.Conn)
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("failed to get raw connection: [%w]", err)
	}

	fd := -1
	err = raw.Control(func(s uintptr) {
		fd = int(s)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get file descriptor: [%w]", err)
	}

	return fd, nil
}
