// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"net"

	"github.com/momentics/goreactor/base"
	"github.com/momentics/goreactor/loop"
	"github.com/momentics/goreactor/reactor"
)

// NewConnectionCallback delivers one freshly accepted fd and its peer
// address, already running on owner's thread.
type NewConnectionCallback func(fd int, peer *net.TCPAddr, owner *loop.EventLoop)

// NextLoopCallback picks which loop should own the next accepted
// connection, for a server that fans connections out across a pool of
// loops. A nil callback keeps every connection on the accepting loop.
type NextLoopCallback func() *loop.EventLoop

// Acceptor owns a listening socket registered with one loop. Level-triggered
// epoll/kqueue readiness already yields a ready client fd straight from
// accept(), so — unlike the libuv original this module is grounded on —
// there is no separate "acquire a free handle, then accept into it" step:
// the free-socket-slot machinery only has a genuine job on the Connector
// side, which must own a socket before it can call connect(). See
// DESIGN.md for this divergence from the reference design.
type Acceptor struct {
	l    *loop.EventLoop
	sock *Socket
	fd   uintptr

	listening bool

	newConnectionCB NewConnectionCallback
	nextLoopCB      NextLoopCallback
}

// NewAcceptor creates and binds a listening socket on addr, owned by l.
func NewAcceptor(l *loop.EventLoop, addr *net.TCPAddr, reusePort bool) (*Acceptor, error) {
	l.SetTCPSocketFactory(func() (int, error) { return NewIPv4StreamSocket() })

	fd, err := NewIPv4StreamSocket()
	if err != nil {
		return nil, err
	}
	sock := NewSocket(fd)
	_ = sock.SetReuseAddr(true)
	_ = sock.SetReusePort(reusePort)
	if err := sock.BindAddress(addr); err != nil {
		_ = sock.Close()
		return nil, err
	}

	return &Acceptor{l: l, sock: sock, fd: uintptr(fd)}, nil
}

func (a *Acceptor) SetNewConnectionCallback(cb NewConnectionCallback) { a.newConnectionCB = cb }
func (a *Acceptor) SetNextLoopCallback(cb NextLoopCallback)           { a.nextLoopCB = cb }

// Listen marks the socket passive and registers it for read readiness.
// Must run on the owning loop's thread.
func (a *Acceptor) Listen() error {
	if err := a.sock.Listen(); err != nil {
		return err
	}
	a.listening = true
	return a.l.Register(a.fd, reactor.EventRead, a)
}

// HandleIO implements loop.IOHandler: drains every connection currently
// pending in the backlog, since level-triggered readiness only guarantees
// at least one is ready, not exactly one.
func (a *Acceptor) HandleIO(ev reactor.Event) {
	for {
		fd, peer, err := a.sock.Accept()
		if err != nil {
			if !isEAGAIN(err) {
				base.Default().Log(base.LevelWarn, "tcp accept error", "err", err)
			}
			return
		}

		target := a.l
		if a.nextLoopCB != nil {
			if picked := a.nextLoopCB(); picked != nil {
				target = picked
			}
		}

		cb := a.newConnectionCB
		target.RunInLoop(func() {
			if cb != nil {
				cb(fd, peer, target)
			} else {
				_ = NewSocket(fd).Close()
			}
		})
	}
}
