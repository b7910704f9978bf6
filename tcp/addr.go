// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Address parsing/formatting is explicitly out of scope for this module
// (spec §1): an address is treated as an opaque value, here simply Go's own
// net.TCPAddr rather than a reimplementation of muduo's InetAddress.

func sockaddrFromTCPAddr(addr *net.TCPAddr) (unix.Sockaddr, error) {
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

func tcpAddrFromSockaddr(sa unix.Sockaddr) (*net.TCPAddr, error) {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, v.Addr[:])
		return &net.TCPAddr{IP: ip, Port: v.Port}, nil
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, v.Addr[:])
		return &net.TCPAddr{IP: ip, Port: v.Port}, nil
	default:
		return nil, fmt.Errorf("tcp: unsupported sockaddr type %T", sa)
	}
}

// isSelfConnect reports whether local and peer addresses are identical,
// the degenerate loopback race a Connector must detect and retry past.
func isSelfConnect(local, peer *net.TCPAddr) bool {
	if local == nil || peer == nil {
		return false
	}
	return local.Port == peer.Port && local.IP.Equal(peer.IP)
}
