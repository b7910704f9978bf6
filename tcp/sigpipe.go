//go:build !windows

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"os/signal"
	"syscall"
)

// init ignores SIGPIPE process-wide so a write to a half-closed peer
// surfaces as EPIPE on the failing syscall instead of killing the process.
// Go's net package already does this for sockets it owns; this guards the
// raw-fd write paths in socket_unix.go that bypass net.Conn.
func init() {
	signal.Ignore(syscall.SIGPIPE)
}
