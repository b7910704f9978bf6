// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"net"
	"time"

	"github.com/momentics/goreactor/base"
	"github.com/momentics/goreactor/loop"
	"github.com/momentics/goreactor/reactor"
)

// ConnectorState is the Connector's own small state machine, independent
// of the Connection state machine the eventual successful connect hands
// off to.
type ConnectorState int32

const (
	ConnectorDisconnected ConnectorState = iota
	ConnectorConnecting
	ConnectorConnected
)

const (
	initRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 30 * time.Second
)

// ConnectedCallback delivers a successfully connected, self-connect-checked
// fd, running on owner's thread.
type ConnectedCallback func(fd int, owner *loop.EventLoop)

// Connector drives an outbound, non-blocking connect with muduo's
// soft-retry/fatal-give-up error classification and doubling backoff.
// Must be constructed and driven from one loop; Start/Stop are safe from
// any goroutine, everything else must run on the loop thread.
type Connector struct {
	l    *loop.EventLoop
	addr *net.TCPAddr

	connect base.Flag

	state      ConnectorState
	retryDelay time.Duration

	fd   uintptr
	sock *Socket

	newConnectionCB ConnectedCallback
}

// NewConnector creates a Connector targeting addr, owned by l.
func NewConnector(l *loop.EventLoop, addr *net.TCPAddr) *Connector {
	l.SetTCPSocketFactory(func() (int, error) { return NewIPv4StreamSocket() })
	return &Connector{l: l, addr: addr, retryDelay: initRetryDelay}
}

func (c *Connector) SetNewConnectionCallback(cb ConnectedCallback) { c.newConnectionCB = cb }

// Start posts a connect attempt. Safe from any goroutine.
func (c *Connector) Start() {
	c.connect.Set(true)
	c.l.RunInLoop(c.startInLoop)
}

func (c *Connector) startInLoop() {
	if c.state != ConnectorDisconnected {
		return
	}
	if c.connect.Get() {
		c.connectNow()
	}
}

// Stop clears the connect intent. An in-flight attempt is allowed to
// complete and is then immediately closed rather than torn down
// mid-flight. Safe from any goroutine.
func (c *Connector) Stop() {
	c.connect.Set(false)
	c.l.QueueInLoop(c.stopInLoop)
}

func (c *Connector) stopInLoop() {
	if c.state == ConnectorConnecting {
		c.state = ConnectorDisconnected
		fd := int(c.fd)
		_ = c.l.Unregister(c.fd)
		c.retry(fd)
	}
}

// Restart resets backoff and retries immediately. Must run on the loop
// thread.
func (c *Connector) Restart() {
	c.state = ConnectorDisconnected
	c.retryDelay = initRetryDelay
	c.connect.Set(true)
	c.startInLoop()
}

// connectNow first tries the owning loop's single free TCP socket slot
// (kept warm by the factory installed in NewConnector) before minting a
// fresh one, per spec §4.3's single-slot replenishment: the Connector is
// the collaborator that genuinely needs to own a socket before it can
// call connect(), unlike Acceptor's accept(), which already hands one
// back ready-to-use.
func (c *Connector) connectNow() {
	fd, ok := c.l.GetFreeTCPSocket()
	if !ok {
		var err error
		fd, err = NewIPv4StreamSocket()
		if err != nil {
			base.Default().Log(base.LevelError, "tcp connector socket create failed", "err", err)
			c.retry(-1)
			return
		}
	}
	sock := NewSocket(fd)
	if err := sock.Connect(c.addr); err != nil {
		c.handleConnectError(fd, err)
		return
	}
	c.connecting(fd, sock)
}

func (c *Connector) handleConnectError(fd int, err error) {
	retry, fatal := classifyConnectError(err)
	switch {
	case retry:
		c.retry(fd)
	case fatal:
		base.Default().Log(base.LevelError, "tcp connector fatal connect error", "addr", c.addr, "err", err)
		_ = NewSocket(fd).Close()
		c.state = ConnectorDisconnected
	default:
		base.Default().Log(base.LevelError, "tcp connector unexpected connect error", "addr", c.addr, "err", err)
		_ = NewSocket(fd).Close()
		c.state = ConnectorDisconnected
	}
}

func (c *Connector) connecting(fd int, sock *Socket) {
	c.state = ConnectorConnecting
	c.fd = uintptr(fd)
	c.sock = sock
	if err := c.l.Register(c.fd, reactor.EventWrite, c); err != nil {
		base.Default().Log(base.LevelError, "tcp connector register failed", "err", err)
		c.retry(fd)
	}
}

// HandleIO implements loop.IOHandler: the connect attempt has either
// completed or failed, signaled by the socket becoming writable or
// erroring.
func (c *Connector) HandleIO(ev reactor.Event) {
	if c.state != ConnectorConnecting {
		return
	}
	fd := int(c.fd)
	_ = c.l.Unregister(c.fd)

	if errno := getSocketError(fd); errno != nil {
		base.Default().Log(base.LevelWarn, "tcp connector SO_ERROR", "err", errno)
		c.retry(fd)
		return
	}
	if c.sock.IsSelfConnect() {
		base.Default().Log(base.LevelWarn, "tcp connector self-connect detected", "addr", c.addr)
		c.retry(fd)
		return
	}

	c.state = ConnectorConnected
	if !c.connect.Get() {
		_ = NewSocket(fd).Close()
		return
	}
	if c.newConnectionCB != nil {
		c.newConnectionCB(fd, c.l)
	} else {
		_ = NewSocket(fd).Close()
	}
}

// retry closes fd (if valid) and, while connect intent is still set,
// schedules another attempt after the current backoff, doubling the
// backoff up to maxRetryDelay. The retry timer closure keeps c reachable
// for the GC for as long as the timer is armed — Go's ordinary reference
// semantics already provide the "retry timer holds a strong handle to the
// connector" guarantee the original takes a shared_ptr to get.
func (c *Connector) retry(fd int) {
	if fd >= 0 {
		_ = NewSocket(fd).Close()
	}
	c.state = ConnectorDisconnected
	if !c.connect.Get() {
		return
	}
	base.Default().Log(base.LevelInfo, "tcp connector retrying", "addr", c.addr, "delay", c.retryDelay)
	c.l.RunAfter(c.retryDelay, c.startInLoop)
	c.retryDelay *= 2
	if c.retryDelay > maxRetryDelay {
		c.retryDelay = maxRetryDelay
	}
}
