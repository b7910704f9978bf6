// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package udp provides a thin datagram collaborator of the reactor core:
// a Socket wrapper plus a Conn that registers it with an EventLoop and
// turns readiness into packet callbacks, mirroring the tcp package's
// shape at a fraction of its state machine since UDP has no connection
// lifecycle to track beyond "registered" and "closed".
package udp

import (
	"net"
	"time"

	"github.com/momentics/goreactor/base"
	"github.com/momentics/goreactor/loop"
	"github.com/momentics/goreactor/reactor"
)

// pendingCapacity bounds the deferred-send ring. UDP already tolerates
// loss at the network layer, so — unlike tcp's unbounded output-buffer
// chain, where every byte handed to Send must eventually reach the
// platform or be accounted for at close — a full ring here sheds the
// newest datagram rather than growing without bound.
const pendingCapacity = 4096

// datagramRing is a fixed-capacity FIFO of pendingDatagram, sized once at
// construction. sendInLoop/handleWrite are the only callers and both only
// ever run on the owning loop's thread (Send marshals cross-thread callers
// in first via QueueInLoop), so — unlike the teacher's lock-free
// atomic-counter ring this is grounded on, built for genuinely concurrent
// producers/consumers — there is exactly one goroutine touching this ring
// at a time and the atomics it would otherwise need buy nothing here; a
// plain slice-backed ring is the honest fit for a single-owner queue.
type datagramRing struct {
	data       []pendingDatagram
	head, size int
}

func newDatagramRing(capacity int) *datagramRing {
	return &datagramRing{data: make([]pendingDatagram, capacity)}
}

func (r *datagramRing) Len() int { return r.size }

func (r *datagramRing) Enqueue(pd pendingDatagram) bool {
	if r.size == len(r.data) {
		return false
	}
	r.data[(r.head+r.size)%len(r.data)] = pd
	r.size++
	return true
}

func (r *datagramRing) Dequeue() (pendingDatagram, bool) {
	if r.size == 0 {
		return pendingDatagram{}, false
	}
	pd := r.data[r.head]
	r.data[r.head] = pendingDatagram{}
	r.head = (r.head + 1) % len(r.data)
	r.size--
	return pd, true
}

// PacketCallback fires once per datagram read off the socket.
// receiveTime is the owning loop's PollReturnTime, matching the TCP
// MessageCallback's timestamp source.
type PacketCallback func(c *Conn, data []byte, from *net.UDPAddr, receiveTime time.Time)

// SendCompleteCallback fires once the queue of datagrams deferred by an
// earlier EAGAIN has fully drained.
type SendCompleteCallback func(c *Conn)

type pendingDatagram struct {
	data []byte
	dst  *net.UDPAddr
}

// Conn owns one registered UDP socket. Unlike tcp.Connection there is no
// Connecting/Connected/Disconnecting state machine to enforce — a
// datagram socket is either registered and usable, or closed — so Conn
// only tracks a closed flag.
type Conn struct {
	l    *loop.EventLoop
	sock *Socket
	fd   uintptr

	closed bool

	// pending holds datagrams deferred by an EAGAIN send, in a fixed-size
	// ring rather than tcp's growable chain: a bounded, loss-tolerant send
	// queue matching UDP's own unreliable-delivery semantics.
	pending    *datagramRing
	writeArmed bool

	packetCB   PacketCallback
	sendDoneCB SendCompleteCallback
}

// NewConn wraps an already-bound (or connect-mode) socket, owned by l.
func NewConn(l *loop.EventLoop, sock *Socket) *Conn {
	return &Conn{l: l, sock: sock, fd: uintptr(sock.Fd()), pending: newDatagramRing(pendingCapacity)}
}

// NewClientConn mints (or reuses) an unbound UDP socket for a one-off
// sender/receiver via the owning loop's single free-socket slot, the same
// single-slot replenishment TCP's Connector consumes from
// (EventLoop.GetFreeUDPSocket) — spec §4.3 keeps one slot "for both TCP
// and UDP", and this is UDP's genuine consumer of it, installing the
// replenishment factory on first use. Must run on the loop thread.
func NewClientConn(l *loop.EventLoop) (*Conn, error) {
	l.SetUDPSocketFactory(func() (int, error) { return NewIPv4DatagramSocket() })

	fd, ok := l.GetFreeUDPSocket()
	if !ok {
		var err error
		fd, err = NewIPv4DatagramSocket()
		if err != nil {
			return nil, err
		}
	}
	return NewConn(l, NewSocket(fd)), nil
}

func (c *Conn) SetPacketCallback(cb PacketCallback)             { c.packetCB = cb }
func (c *Conn) SetSendCompleteCallback(cb SendCompleteCallback) { c.sendDoneCB = cb }

// Start registers the socket for read readiness. Must run on the loop
// thread.
func (c *Conn) Start() error {
	return c.l.Register(c.fd, reactor.EventRead, c)
}

// Stop unregisters and closes the socket. Must run on the loop thread.
func (c *Conn) Stop() error {
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.l.Unregister(c.fd)
	return c.sock.Close()
}

// Send queues one datagram. Safe from any goroutine; off-loop callers pay
// one copy so the packet survives until the loop thread sends it. dst may
// be nil on a connect-mode socket.
func (c *Conn) Send(data []byte, dst *net.UDPAddr) {
	if c.l.IsInLoopThread() {
		c.sendInLoop(data, dst)
		return
	}
	cp := append([]byte(nil), data...)
	c.l.QueueInLoop(func() { c.sendInLoop(cp, dst) })
}

func (c *Conn) sendInLoop(data []byte, dst *net.UDPAddr) {
	if c.closed {
		return
	}
	if c.pending.Len() == 0 {
		_, err := c.sock.TrySend(data, dst)
		switch {
		case err == nil:
			return
		case isEAGAIN(err):
			// fall through to queue below.
		default:
			base.Default().Log(base.LevelWarn, "udp send error", "err", err)
			return
		}
	}

	if !c.pending.Enqueue(pendingDatagram{data: data, dst: dst}) {
		base.Default().Log(base.LevelWarn, "udp pending send ring full, dropping datagram", "conn", c.fd)
		return
	}
	if !c.writeArmed {
		c.writeArmed = true
		if err := c.l.ModifyInterest(c.fd, reactor.EventRead|reactor.EventWrite); err != nil {
			base.Default().Log(base.LevelWarn, "udp arm write interest failed", "err", err)
		}
	}
}

// HandleIO implements loop.IOHandler.
func (c *Conn) HandleIO(ev reactor.Event) {
	if ev.Writable {
		c.handleWrite()
	}
	if ev.Readable {
		c.handleRead()
	}
}

func (c *Conn) handleRead() {
	buf := make([]byte, 65507) // max IPv4 UDP payload
	for {
		n, from, err := c.sock.TryRecv(buf)
		if err != nil {
			if !isEAGAIN(err) {
				base.Default().Log(base.LevelWarn, "udp recv error", "err", err)
			}
			return
		}
		if c.packetCB != nil {
			pkt := append([]byte(nil), buf[:n]...)
			c.packetCB(c, pkt, from, c.l.PollReturnTime())
		}
	}
}

// handleWrite drains the pending ring. datagramRing has no
// peek-without-pop, so an EAGAIN mid-drain re-enqueues the just-dequeued
// datagram at the tail rather than the head — datagrams queued after it
// can overtake it, which is consistent with UDP's own lack of an
// ordering guarantee.
func (c *Conn) handleWrite() {
	for {
		pd, ok := c.pending.Dequeue()
		if !ok {
			break
		}
		_, err := c.sock.TrySend(pd.data, pd.dst)
		switch {
		case err == nil:
		case isEAGAIN(err):
			c.pending.Enqueue(pd)
			return
		default:
			base.Default().Log(base.LevelWarn, "udp deferred send error", "err", err)
		}
	}

	c.writeArmed = false
	_ = c.l.ModifyInterest(c.fd, reactor.EventRead)
	if c.sendDoneCB != nil {
		cb := c.sendDoneCB
		c.l.QueueInLoop(func() { cb(c) })
	}
}
