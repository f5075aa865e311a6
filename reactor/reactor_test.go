package reactor

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

const (
	notifyTimeout = 2 * time.Second
	quietPeriod   = 150 * time.Millisecond
)

// connPair returns the accepted and the dialing end of a loopback TCP connection.
func connPair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen, ERROR returned unexpected error %q", err.Error())
	}
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial, ERROR returned unexpected error %q", err.Error())
	}

	server, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept, ERROR returned unexpected error %q", err.Error())
	}

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	return server, client
}

func startReactor(t *testing.T) Reactor {
	t.Helper()

	r, err := New(zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New, ERROR returned unexpected error %q", err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		r.Close()
		<-done
	})

	return r
}

func expectNotification(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()

	select {
	case <-ch:
		t.Logf("%s, OK", what)
	case <-time.After(notifyTimeout):
		t.Fatalf("%s, ERROR no notification within %s", what, notifyTimeout)
	}
}

func expectQuiet(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()

	select {
	case <-ch:
		t.Fatalf("%s, ERROR unexpected notification", what)
	case <-time.After(quietPeriod):
	}
}

func TestRegistrationIsOneShot(t *testing.T) {
	r := startReactor(t)
	server, client := connPair(t)

	notified := make(chan struct{}, 8)
	br := bufio.NewReader(server)
	reg, err := r.Register(Source{Conn: server, Reader: br}, func() {
		notified <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Register, ERROR returned unexpected error %q", err.Error())
	}

	// disarmed until the first Rearm
	client.Write([]byte("a"))
	expectQuiet(t, notified, "write before Rearm")

	if err := reg.Rearm(); err != nil {
		t.Fatalf("Rearm, ERROR returned unexpected error %q", err.Error())
	}
	expectNotification(t, notified, "pending data after Rearm")

	// still unread, but no Rearm yet
	client.Write([]byte("b"))
	expectQuiet(t, notified, "write while disarmed")

	buf := make([]byte, 2)
	if _, err := br.Read(buf); err != nil {
		t.Fatalf("Read, ERROR returned unexpected error %q", err.Error())
	}

	if err := reg.Rearm(); err != nil {
		t.Fatalf("Rearm, ERROR returned unexpected error %q", err.Error())
	}
	client.Write([]byte("c"))
	expectNotification(t, notified, "new data after second Rearm")
}

func TestCancelledRegistration(t *testing.T) {
	r := startReactor(t)
	server, client := connPair(t)

	notified := make(chan struct{}, 1)
	reg, err := r.Register(Source{Conn: server, Reader: bufio.NewReader(server)}, func() {
		notified <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Register, ERROR returned unexpected error %q", err.Error())
	}
	if err := reg.Rearm(); err != nil {
		t.Fatalf("Rearm, ERROR returned unexpected error %q", err.Error())
	}

	if err := reg.Cancel(); err != nil {
		t.Fatalf("Cancel, ERROR returned unexpected error %q", err.Error())
	}
	if err := reg.Cancel(); err != nil {
		t.Errorf("second Cancel, ERROR returned unexpected error %q", err.Error())
	}

	client.Write([]byte("a"))
	expectQuiet(t, notified, "write after Cancel")

	if err := reg.Rearm(); !errors.Is(err, ErrCancelled) {
		t.Errorf("Rearm after Cancel, ERROR expected %v, got %v", ErrCancelled, err)
	}
}

func TestPanickingCallbackKeepsReactorRunning(t *testing.T) {
	r := startReactor(t)
	server1, client1 := connPair(t)
	server2, client2 := connPair(t)

	panicked := make(chan struct{}, 1)
	reg1, err := r.Register(Source{Conn: server1, Reader: bufio.NewReader(server1)}, func() {
		panicked <- struct{}{}
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Register, ERROR returned unexpected error %q", err.Error())
	}

	notified := make(chan struct{}, 1)
	reg2, err := r.Register(Source{Conn: server2, Reader: bufio.NewReader(server2)}, func() {
		notified <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Register, ERROR returned unexpected error %q", err.Error())
	}

	reg1.Rearm()
	client1.Write([]byte("a"))
	expectNotification(t, panicked, "panicking callback ran")

	reg2.Rearm()
	client2.Write([]byte("b"))
	expectNotification(t, notified, "other source after a panic")
}

func TestPeerCloseNotifies(t *testing.T) {
	r := startReactor(t)
	server, client := connPair(t)

	notified := make(chan struct{}, 1)
	reg, err := r.Register(Source{Conn: server, Reader: bufio.NewReader(server)}, func() {
		notified <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Register, ERROR returned unexpected error %q", err.Error())
	}
	reg.Rearm()

	client.Close()
	expectNotification(t, notified, "peer close")
}
