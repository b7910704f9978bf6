//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"net"

	"golang.org/x/sys/unix"
)

// Socket wraps a raw, non-blocking TCP file descriptor. All operations
// delegate straight to the OS; Socket itself does no buffering or locking —
// callers serialize access by only touching a given Socket from its owning
// loop's thread.
type Socket struct {
	fd int
}

// newRawStreamSocket creates a non-blocking, close-on-exec TCP socket for
// the given address family, used both to build the listening/connecting
// Socket and as the loop's replenished spare-socket factory.
func newRawStreamSocket(family int) (int, error) {
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// NewIPv4StreamSocket mints a spare IPv4 TCP socket, usable as a loop
// socket-factory callback.
func NewIPv4StreamSocket() (int, error) { return newRawStreamSocket(unix.AF_INET) }

// NewSocket wraps an already-created fd (typically one handed back by a
// loop's spare-socket slot or returned from Accept).
func NewSocket(fd int) *Socket { return &Socket{fd: fd} }

func (s *Socket) Fd() int { return s.fd }

func (s *Socket) Close() error { return unix.Close(s.fd) }

func (s *Socket) SetNoDelay(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(on))
}

func (s *Socket) SetReuseAddr(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(on))
}

func (s *Socket) SetReusePort(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, boolToInt(on))
}

func (s *Socket) SetKeepAlive(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(on))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// BindAddress binds the socket, aborting the caller's setup on failure —
// mirroring the teacher's bind-or-abort posture for listener construction.
func (s *Socket) BindAddress(addr *net.TCPAddr) error {
	sa, err := sockaddrFromTCPAddr(addr)
	if err != nil {
		return err
	}
	return unix.Bind(s.fd, sa)
}

// Listen marks the socket passive with the system's maximum backlog.
func (s *Socket) Listen() error {
	return unix.Listen(s.fd, unix.SOMAXCONN)
}

// Accept extracts one pending connection as a new non-blocking,
// close-on-exec fd plus the peer's address. Returns unix.EAGAIN when no
// connection is pending (the caller owns a level-triggered EventRead
// registration and will be re-invoked).
func (s *Socket) Accept() (fd int, peer *net.TCPAddr, err error) {
	nfd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, err
	}
	addr, err := tcpAddrFromSockaddr(sa)
	if err != nil {
		_ = unix.Close(nfd)
		return -1, nil, err
	}
	return nfd, addr, nil
}

// Connect issues a non-blocking connect; completion is observed as
// EventWrite readiness on this fd, same as any other outbound write.
func (s *Socket) Connect(addr *net.TCPAddr) error {
	sa, err := sockaddrFromTCPAddr(addr)
	if err != nil {
		return err
	}
	err = unix.Connect(s.fd, sa)
	if err == unix.EINPROGRESS {
		return nil
	}
	return err
}

// ShutdownWrite half-closes the write side only.
func (s *Socket) ShutdownWrite() error {
	return unix.Shutdown(s.fd, unix.SHUT_WR)
}

// TryWrite attempts one non-blocking write of buf, returning the number of
// bytes accepted. unix.EAGAIN is returned as-is for the caller to treat as
// "zero progress, not an error".
func (s *Socket) TryWrite(buf []byte) (int, error) {
	n, err := unix.Write(s.fd, buf)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Read attempts one non-blocking read into buf.
func (s *Socket) Read(buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if n < 0 {
		n = 0
	}
	return n, err
}

func (s *Socket) LocalAddr() (*net.TCPAddr, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return nil, err
	}
	return tcpAddrFromSockaddr(sa)
}

func (s *Socket) PeerAddr() (*net.TCPAddr, error) {
	sa, err := unix.Getpeername(s.fd)
	if err != nil {
		return nil, err
	}
	return tcpAddrFromSockaddr(sa)
}

func isEAGAIN(err error) bool            { return err == unix.EAGAIN }
func isNoTryWriteSupport(err error) bool { return err == unix.ENOSYS }
func isBrokenConn(err error) bool        { return err == unix.EPIPE || err == unix.ECONNRESET }

// classifyConnectError splits a failed connect() into the Connector's
// soft-retry-with-backoff set versus its fatal-give-up set, per the
// original implementation's handleError/retry logic.
func classifyConnectError(err error) (retry, fatal bool) {
	switch err {
	case unix.EAGAIN, unix.EADDRINUSE, unix.EADDRNOTAVAIL, unix.ECONNREFUSED, unix.ENETUNREACH:
		return true, false
	case unix.EACCES, unix.EPERM, unix.EAFNOSUPPORT, unix.EBADF, unix.EFAULT, unix.ENOTSOCK:
		return false, true
	default:
		return false, true
	}
}

// getSocketError reads SO_ERROR, the standard way to learn whether a
// non-blocking connect that just became writable actually succeeded.
func getSocketError(fd int) error {
	v, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

// IsSelfConnect reports whether this socket's local and peer endpoints
// coincide, the loopback race a Connector must reject and retry past.
func (s *Socket) IsSelfConnect() bool {
	local, err := s.LocalAddr()
	if err != nil {
		return false
	}
	peer, err := s.PeerAddr()
	if err != nil {
		return false
	}
	return isSelfConnect(local, peer)
}
