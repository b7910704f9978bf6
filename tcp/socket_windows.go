//go:build windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"errors"
	"net"
)

// ErrUnsupportedPlatform is returned by every Socket operation on Windows.
// The spec's Platform abstraction explicitly does not prescribe a poller
// beyond epoll/kqueue/stub; the raw-fd readiness model socket_unix.go
// depends on (level-triggered EventRead/EventWrite) has no IOCP
// counterpart — IOCP is completion-based, not readiness-based — so the
// windows reactor (reactor/reactor_windows.go) wires only the wakeup
// primitive, and the TCP transport stays a documented stub here rather
// than a half-correct readiness emulation over completion ports.
var ErrUnsupportedPlatform = errors.New("tcp: raw-socket transport is not implemented on windows")

type Socket struct{}

func NewIPv4StreamSocket() (int, error) { return -1, ErrUnsupportedPlatform }

func NewSocket(fd int) *Socket { return &Socket{} }

func (s *Socket) Fd() int                                      { return -1 }
func (s *Socket) Close() error                                 { return ErrUnsupportedPlatform }
func (s *Socket) SetNoDelay(on bool) error                     { return ErrUnsupportedPlatform }
func (s *Socket) SetReuseAddr(on bool) error                   { return ErrUnsupportedPlatform }
func (s *Socket) SetReusePort(on bool) error                   { return ErrUnsupportedPlatform }
func (s *Socket) SetKeepAlive(on bool) error                   { return ErrUnsupportedPlatform }
func (s *Socket) BindAddress(addr *net.TCPAddr) error           { return ErrUnsupportedPlatform }
func (s *Socket) Listen() error                                 { return ErrUnsupportedPlatform }
func (s *Socket) Accept() (int, *net.TCPAddr, error)            { return -1, nil, ErrUnsupportedPlatform }
func (s *Socket) Connect(addr *net.TCPAddr) error                { return ErrUnsupportedPlatform }
func (s *Socket) ShutdownWrite() error                           { return ErrUnsupportedPlatform }
func (s *Socket) TryWrite(buf []byte) (int, error)               { return 0, ErrUnsupportedPlatform }
func (s *Socket) Read(buf []byte) (int, error)                   { return 0, ErrUnsupportedPlatform }
func (s *Socket) LocalAddr() (*net.TCPAddr, error)               { return nil, ErrUnsupportedPlatform }
func (s *Socket) PeerAddr() (*net.TCPAddr, error)                { return nil, ErrUnsupportedPlatform }
func (s *Socket) IsSelfConnect() bool                            { return false }

func isEAGAIN(err error) bool            { return false }
func isNoTryWriteSupport(err error) bool { return false }
func isBrokenConn(err error) bool        { return false }

func classifyConnectError(err error) (retry, fatal bool) { return false, true }

func getSocketError(fd int) error { return ErrUnsupportedPlatform }
