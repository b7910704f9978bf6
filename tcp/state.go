// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package tcp implements the TCP socket wrapper, connection state machine,
// acceptor, and connector: the transport layer driven by a loop.EventLoop.
package tcp

// State is a TCP connection's lifecycle stage. A connection transitions
// monotonically Connecting -> Connected -> Disconnecting -> Disconnected;
// a forced close collapses straight to Disconnecting -> Disconnected.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
