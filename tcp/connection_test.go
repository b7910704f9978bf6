//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"net"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/goreactor/loop"
)

// newConnectedPair returns a Socket-wrapped end of a non-blocking AF_UNIX
// socketpair plus the raw peer fd, standing in for a live TCP connection
// without binding a real port. TryWrite/Read are plain byte-stream
// syscalls indifferent to address family, so this exercises the same code
// paths a TCP socket would.
func newConnectedPair(t *testing.T) (*Socket, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() { _ = unix.Close(fds[1]) })
	return NewSocket(fds[0]), fds[1]
}

func newRunningLoop(t *testing.T) *loop.EventLoop {
	t.Helper()
	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop.New: %v", err)
	}
	done := make(chan struct{})
	go func() { l.Run(); close(done) }()
	t.Cleanup(func() {
		l.Quit()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("loop did not stop")
		}
	})
	return l
}

func TestConnectionSendDeliversBytesToPeer(t *testing.T) {
	l := newRunningLoop(t)
	sock, peerFd := newConnectedPair(t)

	addr := &net.TCPAddr{}
	conn := NewConnection("test", l, sock, addr, addr)

	up := make(chan struct{}, 1)
	conn.SetConnectionCallback(func(c *Connection) { up <- struct{}{} })
	l.RunInLoop(conn.Established)

	select {
	case <-up:
	case <-time.After(time.Second):
		t.Fatalf("connection never reached Established")
	}

	conn.Send([]byte("hello"))

	deadline := time.Now().Add(time.Second)
	buf := make([]byte, 16)
	var n int
	var err error
	for time.Now().Before(deadline) {
		n, err = unix.Read(peerFd, buf)
		if n > 0 || (err != nil && err != unix.EAGAIN) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil && err != unix.EAGAIN {
		t.Fatalf("read from peer: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q, want %q", buf[:n], "hello")
	}
}

func TestConnectionHandleCloseFiresConnectionCallbackThenCloseCallback(t *testing.T) {
	l := newRunningLoop(t)
	sock, peerFd := newConnectedPair(t)
	_ = unix.Close(peerFd) // peer goes away: next read on sock observes EOF.

	addr := &net.TCPAddr{}
	conn := NewConnection("test", l, sock, addr, addr)

	var order []string
	downSeen := make(chan struct{}, 1)
	conn.SetConnectionCallback(func(c *Connection) {
		order = append(order, "connection")
		if c.State() == StateDisconnected {
			downSeen <- struct{}{}
		}
	})
	conn.SetCloseCallback(func(c *Connection) {
		order = append(order, "close")
	})

	l.RunInLoop(func() {
		conn.Established()
		conn.handleClose()
	})

	select {
	case <-downSeen:
	case <-time.After(time.Second):
		t.Fatalf("connection callback never observed Disconnected state")
	}

	// The close callback runs after the DOWN signal, still inside the same
	// loop closure; wait for the loop to finish it before reading order.
	flushed := make(chan struct{})
	l.RunInLoop(func() { close(flushed) })
	<-flushed

	if len(order) < 2 || order[len(order)-2] != "connection" || order[len(order)-1] != "close" {
		t.Fatalf("expected connection callback before close callback, got %v", order)
	}
}
