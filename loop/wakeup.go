// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

// wakeFD is a cross-thread wakeup primitive for reactors that have no native
// software-triggered wakeup and so must be kicked by making a registered fd
// readable (eventfd on Linux, a self-pipe elsewhere). Reactors that satisfy
// reactor.Waker directly (IOCP) never construct one of these; see waker.go.
type wakeFD interface {
	// Fd is the read end, registered with the reactor for EventRead.
	Fd() uintptr
	// Notify makes Fd ready at least once; coalesced, so repeat calls
	// before the loop drains are cheap.
	Notify() error
	// Drain consumes whatever made Fd ready, so the next Notify is
	// observed as a fresh edge rather than stale buffered data.
	Drain()
	Close() error
}
