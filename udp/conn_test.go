//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package udp

import (
	"net"
	"testing"
	"time"

	"github.com/momentics/goreactor/loop"
)

func newLoopbackConn(t *testing.T, l *loop.EventLoop) *Conn {
	t.Helper()
	fd, err := NewIPv4DatagramSocket()
	if err != nil {
		t.Fatalf("new datagram socket: %v", err)
	}
	sock := NewSocket(fd)
	if err := sock.BindAddress(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	return NewConn(l, sock)
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

func TestConnSendDeliversPacketToPeer(t *testing.T) {
	l := newRunningLoop(t)

	server := newLoopbackConn(t, l)
	client := newLoopbackConn(t, l)

	received := make(chan []byte, 1)
	server.SetPacketCallback(func(c *Conn, data []byte, from *net.UDPAddr, receiveTime time.Time) {
		received <- data
	})

	l.RunInLoop(func() {
		if err := server.Start(); err != nil {
			t.Errorf("server.Start: %v", err)
		}
	})

	serverAddr, err := server.sock.LocalAddr()
	if err != nil {
		t.Fatalf("server local addr: %v", err)
	}

	client.Send([]byte("ping"), serverAddr)

	select {
	case data := <-received:
		if string(data) != "ping" {
			t.Fatalf("got %q, want %q", data, "ping")
		}
	case <-time.After(time.Second):
		t.Fatalf("server never received packet")
	}
}

func TestNewClientConnConsumesFreeSocketSlot(t *testing.T) {
	l := newRunningLoop(t)

	var first, second *Conn
	done := make(chan struct{})
	l.RunInLoop(func() {
		var err error
		first, err = NewClientConn(l)
		if err != nil {
			t.Fatalf("NewClientConn: %v", err)
		}
		// The loop's free-socket slot is only populated lazily on first
		// consumption (see EventLoop.GetFreeUDPSocket), so a second call
		// is the one that actually observes a slot hit.
		second, err = NewClientConn(l)
		if err != nil {
			t.Fatalf("NewClientConn: %v", err)
		}
		close(done)
	})
	<-done

	if first.sock.Fd() == second.sock.Fd() {
		t.Fatalf("expected two distinct fds, got the same fd twice")
	}
}

func TestConnSendQueuesWholeDatagramsOnBackpressure(t *testing.T) {
	l := newRunningLoop(t)
	c := newLoopbackConn(t, l)

	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
	l.RunInLoop(func() {
		c.writeArmed = true // simulate an already-armed, saturated socket.
		c.pending.Enqueue(pendingDatagram{data: []byte("queued"), dst: dst})
		// With datagrams already pending, Send must queue behind them.
		c.Send([]byte("next"), dst)
	})

	done := make(chan struct{})
	l.RunInLoop(func() {
		if c.pending.Len() != 2 {
			t.Errorf("expected two queued datagrams, got %d", c.pending.Len())
		}
		c.pending.Dequeue()
		if pd, ok := c.pending.Dequeue(); !ok || string(pd.data) != "next" {
			t.Errorf("expected whole datagram %q queued by Send, got %q", "next", pd.data)
		}
		close(done)
	})
	<-done
}
