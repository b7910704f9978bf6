// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/momentics/goreactor/base"
	"github.com/momentics/goreactor/buffer"
	"github.com/momentics/goreactor/loop"
	"github.com/momentics/goreactor/reactor"
	"github.com/momentics/goreactor/timer"
)

// DefaultHighWaterMark is the output-buffer size threshold whose upward
// crossing fires the high-water-mark callback.
const DefaultHighWaterMark = 64 * 1024 * 1024

const readBufferChunk = 64 * 1024

// ConnectionCallback fires on UP (state reaches Connected) and DOWN (state
// reaches Disconnected).
type ConnectionCallback func(c *Connection)

// MessageCallback fires when bytes have been committed to the input
// buffer; receiveTime is the owning loop's PollReturnTime, not time.Now.
type MessageCallback func(c *Connection, in *buffer.Buffer, receiveTime time.Time)

// WriteCompleteCallback fires once the output buffer has fully drained
// after a send.
type WriteCompleteCallback func(c *Connection)

// HighWaterMarkCallback fires when the output buffer's pending size
// crosses highWaterMark upward.
type HighWaterMarkCallback func(c *Connection, pending int)

// CloseCallback is internal: invoked once, after the user's DOWN
// notification, so the owning container can unregister the connection.
type CloseCallback func(c *Connection)

// Connection is one accepted or connected TCP socket's state machine: input
// buffer, output-buffer-manager ring, and the five user callbacks. Every
// method that is not explicitly loop-thread-only is safe to call from any
// goroutine; state itself is only ever mutated on the owning loop's thread,
// so State() doubles as the "is this connection still alive" check that
// stands in for a C++ weak-pointer upgrade in deferred callbacks.
type Connection struct {
	name string
	l    *loop.EventLoop
	sock *Socket
	fd   uintptr

	local, peer *net.TCPAddr

	// stateVal is mutated only on the owning loop's thread but read from
	// any thread via State(), which plays the role a weak-handle upgrade
	// check plays in the reference implementation.
	stateVal atomic.Int32

	in  *buffer.Buffer
	out *outputBufferManager

	highWaterMark int
	writeArmed    bool

	connectionCB     ConnectionCallback
	messageCB        MessageCallback
	writeCompleteCB  WriteCompleteCallback
	highWaterMarkCB  HighWaterMarkCallback
	closeCB          CloseCallback
}

// NewConnection wraps an already-accepted-or-connected socket. The
// connection starts in StateConnecting; call Established once it should
// begin dispatching reads.
func NewConnection(name string, l *loop.EventLoop, sock *Socket, local, peer *net.TCPAddr) *Connection {
	return &Connection{
		name:          name,
		l:             l,
		sock:          sock,
		fd:            uintptr(sock.Fd()),
		local:         local,
		peer:          peer,
		in:            buffer.New(),
		out:           newOutputBufferManager(),
		highWaterMark: DefaultHighWaterMark,
	}
}

func (c *Connection) Name() string          { return c.name }
func (c *Connection) LocalAddr() *net.TCPAddr { return c.local }
func (c *Connection) PeerAddr() *net.TCPAddr  { return c.peer }

// State is safe to read from any goroutine; the owning loop thread is the
// only writer.
func (c *Connection) State() State { return State(c.stateVal.Load()) }

func (c *Connection) setState(s State) { c.stateVal.Store(int32(s)) }

func (c *Connection) SetConnectionCallback(cb ConnectionCallback)       { c.connectionCB = cb }
func (c *Connection) SetMessageCallback(cb MessageCallback)             { c.messageCB = cb }
func (c *Connection) SetWriteCompleteCallback(cb WriteCompleteCallback) { c.writeCompleteCB = cb }
func (c *Connection) SetHighWaterMarkCallback(cb HighWaterMarkCallback) { c.highWaterMarkCB = cb }
func (c *Connection) SetCloseCallback(cb CloseCallback)                 { c.closeCB = cb }
func (c *Connection) SetHighWaterMark(n int)                            { c.highWaterMark = n }

func (c *Connection) SetTCPNoDelay(on bool) { _ = c.sock.SetNoDelay(on) }

// Established transitions Connecting -> Connected, registers read
// readiness with the loop, and fires the connection callback. Called by
// Acceptor/Connector on the loop thread once the socket is ready to use.
func (c *Connection) Established() {
	c.setState(StateConnected)
	if err := c.l.Register(c.fd, reactor.EventRead, c); err != nil {
		base.Default().Log(base.LevelError, "tcp register failed", "conn", c.name, "err", err)
	}
	if c.connectionCB != nil {
		c.connectionCB(c)
	}
}

// Destroyed is called by the owning container (e.g. a server's connection
// map) when it drops its reference. If the connection is still Connected
// this moves it to Disconnected, stops reads, and fires the connection
// callback (DOWN). Unlike handleClose it does not invoke the close callback
// and does not close the socket.
func (c *Connection) Destroyed() {
	if c.State() == StateConnected {
		c.setState(StateDisconnected)
		_ = c.l.Unregister(c.fd)
		if c.connectionCB != nil {
			c.connectionCB(c)
		}
	}
}

// Send queues bytes for delivery. Safe from any goroutine; off-loop callers
// pay one copy so the data survives until the loop thread processes it.
func (c *Connection) Send(data []byte) {
	if c.l.IsInLoopThread() {
		c.sendInLoop(data)
		return
	}
	cp := append([]byte(nil), data...)
	c.l.QueueInLoop(func() { c.sendInLoop(cp) })
}

func (c *Connection) sendInLoop(data []byte) {
	if c.State() == StateDisconnected {
		base.Default().Log(base.LevelWarn, "tcp send on disconnected connection", "conn", c.name)
		return
	}

	var (
		faultError bool
		nwrote     int
		remaining  = len(data)
	)

	if c.out.Empty() && !c.writeArmed {
		n, err := c.sock.TryWrite(data)
		switch {
		case err == nil:
			nwrote = n
			remaining = len(data) - n
		case isEAGAIN(err), isNoTryWriteSupport(err):
			// remaining stays len(data), nwrote stays 0: buffer everything.
		case isBrokenConn(err):
			faultError = true
		default:
			base.Default().Log(base.LevelWarn, "tcp write error", "conn", c.name, "err", err)
			faultError = true
		}

		if err == nil && remaining == 0 {
			if c.writeCompleteCB != nil {
				cb := c.writeCompleteCB
				c.l.QueueInLoop(func() { cb(c) })
			}
			return
		}
	}

	if faultError || remaining <= 0 {
		return
	}

	before := c.out.Readable()
	pending := before + remaining
	if before < c.highWaterMark && pending >= c.highWaterMark && c.highWaterMarkCB != nil {
		cb := c.highWaterMarkCB
		p := pending
		c.l.QueueInLoop(func() { cb(c, p) })
	}

	c.out.Append(data[nwrote:])
	if !c.writeArmed {
		c.writeArmed = true
		if err := c.l.ModifyInterest(c.fd, reactor.EventRead|reactor.EventWrite); err != nil {
			base.Default().Log(base.LevelWarn, "tcp arm write interest failed", "conn", c.name, "err", err)
		}
	}
}

// Shutdown initiates half-close: only the write side closes. Idempotent
// after the first call while Connected or Disconnecting.
func (c *Connection) Shutdown() {
	c.l.RunInLoop(c.shutdownInLoop)
}

func (c *Connection) shutdownInLoop() {
	if c.State() != StateConnected {
		return
	}
	c.setState(StateDisconnecting)
	if !c.writeArmed {
		_ = c.sock.ShutdownWrite()
	}
	// If a write is still in flight, handleWrite finishes it and shuts down
	// the write side once the output buffer drains (see handleWrite).
}

// ForceClose schedules an immediate full close.
func (c *Connection) ForceClose() {
	c.l.RunInLoop(c.forceCloseInLoop)
}

func (c *Connection) forceCloseInLoop() {
	if c.State() == StateConnected || c.State() == StateDisconnecting {
		c.setState(StateDisconnecting)
		c.handleClose()
	}
}

// ForceCloseWithDelay arms a timer that force-closes this connection after
// delay, provided it is still alive when the timer fires — the timer
// itself holds a strong Go reference, but handleClose is a no-op once the
// state has already moved past Connected/Disconnecting, which is this
// module's substitute for upgrading a weak handle that failed.
func (c *Connection) ForceCloseWithDelay(delay time.Duration) timer.TimerId {
	return c.l.RunAfter(delay, c.forceCloseInLoop)
}

// HandleIO implements loop.IOHandler.
func (c *Connection) HandleIO(ev reactor.Event) {
	if ev.Writable {
		c.handleWrite()
	}
	if ev.Readable {
		c.handleRead()
	}
	if ev.Error {
		c.handleClose()
		return
	}
	if ev.Hangup && !ev.Readable {
		c.handleClose()
	}
}

func (c *Connection) handleRead() {
	c.in.EnsureWritable(readBufferChunk)
	n, err := c.sock.Read(c.in.BeginWrite()[:readBufferChunk])
	switch {
	case n > 0:
		c.in.HasWritten(n)
		if c.messageCB != nil {
			c.messageCB(c, c.in, c.l.PollReturnTime())
		}
	case n == 0 && err == nil:
		c.handleClose()
	case isEAGAIN(err):
		// spurious wakeup under level-triggered readiness; nothing to do.
	default:
		base.Default().Log(base.LevelWarn, "tcp read error", "conn", c.name, "err", err)
		c.handleClose()
	}
}

func (c *Connection) handleWrite() {
	if !c.writeArmed {
		return
	}
	done, err := c.out.Drain(c.sock.TryWrite)
	if err != nil {
		base.Default().Log(base.LevelWarn, "tcp write error", "conn", c.name, "err", err)
		return
	}
	if !done {
		return
	}

	c.writeArmed = false
	_ = c.l.ModifyInterest(c.fd, reactor.EventRead)

	if c.writeCompleteCB != nil {
		cb := c.writeCompleteCB
		c.l.QueueInLoop(func() { cb(c) })
	}
	if c.State() == StateDisconnecting {
		_ = c.sock.ShutdownWrite()
	}
}

// handleClose implements the read-side-EOF close sequence: transition to
// Disconnected, stop reads, then fire the user connection callback (final
// DOWN notification) before the internal close callback that lets the
// owner unregister this connection — in that order, so the user observes
// DOWN before the connection is removed from its container.
func (c *Connection) handleClose() {
	if c.State() != StateConnected && c.State() != StateDisconnecting {
		return
	}
	c.setState(StateDisconnected)
	_ = c.l.Unregister(c.fd)

	if c.connectionCB != nil {
		c.connectionCB(c)
	}
	cb := c.closeCB
	c.closeCB = nil
	if cb != nil {
		cb(c)
	}
	_ = c.sock.Close()
}
