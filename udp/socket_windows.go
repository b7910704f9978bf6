//go:build windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package udp

import (
	"net"

	"github.com/momentics/goreactor/tcp"
)

// Socket is a documented stub on Windows for the same reason
// tcp.Socket is: the readiness model recv/send here is built on has no
// IOCP counterpart in this codebase. See tcp.ErrUnsupportedPlatform.
type Socket struct{}

func NewIPv4DatagramSocket() (int, error) { return -1, tcp.ErrUnsupportedPlatform }

func NewSocket(fd int) *Socket { return &Socket{} }

func (s *Socket) Fd() int                          { return -1 }
func (s *Socket) Close() error                     { return tcp.ErrUnsupportedPlatform }
func (s *Socket) SetReuseAddr(on bool) error       { return tcp.ErrUnsupportedPlatform }
func (s *Socket) SetBroadcast(on bool) error       { return tcp.ErrUnsupportedPlatform }
func (s *Socket) BindAddress(addr *net.UDPAddr) error { return tcp.ErrUnsupportedPlatform }
func (s *Socket) Connect(addr *net.UDPAddr) error     { return tcp.ErrUnsupportedPlatform }

func (s *Socket) TryRecv(buf []byte) (int, *net.UDPAddr, error) {
	return 0, nil, tcp.ErrUnsupportedPlatform
}

func (s *Socket) TrySend(buf []byte, dst *net.UDPAddr) (int, error) {
	return 0, tcp.ErrUnsupportedPlatform
}

func (s *Socket) LocalAddr() (*net.UDPAddr, error) { return nil, tcp.ErrUnsupportedPlatform }

func isEAGAIN(err error) bool { return false }
