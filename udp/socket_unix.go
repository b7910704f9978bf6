//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package udp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Socket wraps a raw, non-blocking UDP file descriptor. Mirrors
// tcp.Socket's shape (same non-blocking/close-on-exec construction, same
// "no buffering or locking, owning loop thread only" contract) but for
// datagrams: no listen/accept/connect-completion state, just bind plus
// per-packet recv/send.
type Socket struct {
	fd int
}

// NewIPv4DatagramSocket mints a spare IPv4 UDP socket. Installed as the
// loop's UDP socket-factory callback by NewClientConn (loop.
// SetUDPSocketFactory), exercising the same single-slot replenishment
// TCP's Connector consumes from on the stream side.
func NewIPv4DatagramSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// NewSocket wraps an already-created fd.
func NewSocket(fd int) *Socket { return &Socket{fd: fd} }

func (s *Socket) Fd() int { return s.fd }

func (s *Socket) Close() error { return unix.Close(s.fd) }

func (s *Socket) SetReuseAddr(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, v)
}

func (s *Socket) SetBroadcast(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_BROADCAST, v)
}

// BindAddress binds the socket to addr, or to an ephemeral port if addr's
// port is zero (the client case).
func (s *Socket) BindAddress(addr *net.UDPAddr) error {
	sa, err := sockaddrFromUDPAddr(addr)
	if err != nil {
		return err
	}
	return unix.Bind(s.fd, sa)
}

// Connect fixes the socket's peer for connect-mode UDP: subsequent
// RecvFrom calls only observe packets from this peer, and TrySend no
// longer needs a destination. The spec's open question about connect-mode
// peer filtering on partial packets (§9) is resolved here by delegating
// entirely to the kernel's own connect-mode datagram filtering rather than
// reimplementing it in userspace.
func (s *Socket) Connect(addr *net.UDPAddr) error {
	sa, err := sockaddrFromUDPAddr(addr)
	if err != nil {
		return err
	}
	return unix.Connect(s.fd, sa)
}

// TryRecv attempts one non-blocking datagram read, returning the sender's
// address. unix.EAGAIN is returned as-is: "nothing pending", not an error.
func (s *Socket) TryRecv(buf []byte) (n int, from *net.UDPAddr, err error) {
	n, sa, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, nil, err
	}
	if sa == nil {
		return n, nil, nil
	}
	addr, err := udpAddrFromSockaddr(sa)
	if err != nil {
		return n, nil, err
	}
	return n, addr, nil
}

// TrySend attempts one non-blocking datagram write to dst. dst may be nil
// on a connect-mode socket, in which case the kernel uses the fixed peer.
func (s *Socket) TrySend(buf []byte, dst *net.UDPAddr) (int, error) {
	if dst == nil {
		n, err := unix.Write(s.fd, buf)
		if n < 0 {
			n = 0
		}
		return n, err
	}
	sa, err := sockaddrFromUDPAddr(dst)
	if err != nil {
		return 0, err
	}
	if err := unix.Sendto(s.fd, buf, 0, sa); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (s *Socket) LocalAddr() (*net.UDPAddr, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return nil, err
	}
	return udpAddrFromSockaddr(sa)
}

func sockaddrFromUDPAddr(addr *net.UDPAddr) (unix.Sockaddr, error) {
	if addr.IP == nil || addr.IP.To4() != nil {
		var s unix.SockaddrInet4
		s.Port = addr.Port
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(s.Addr[:], ip4)
		}
		return &s, nil
	}
	var s unix.SockaddrInet6
	s.Port = addr.Port
	copy(s.Addr[:], addr.IP.To16())
	return &s, nil
}

func udpAddrFromSockaddr(sa unix.Sockaddr) (*net.UDPAddr, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, v.Addr[:])
		return &net.UDPAddr{IP: ip, Port: v.Port}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, v.Addr[:])
		return &net.UDPAddr{IP: ip, Port: v.Port}, nil
	default:
		return nil, fmt.Errorf("udp: unsupported sockaddr type %T", sa)
	}
}

func isEAGAIN(err error) bool { return err == unix.EAGAIN }
