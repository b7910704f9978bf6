// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral event reactor interface for cross-platform IO
// multiplexing, consumed by the event loop's poll step.

package reactor

// EventMask identifies the I/O readiness an EventReactor should watch for,
// or is reporting on, a registered handle.
type EventMask uint8

const (
	EventRead EventMask = 1 << iota
	EventWrite
)

// EventReactor defines basic reactor operations across OS platforms. It
// never runs callbacks itself; Wait returns ready events for the loop to
// dispatch.
type EventReactor interface {
	// Add registers fd for the given interest set, tagging it with
	// userData (an opaque handle id) echoed back on every Event for fd.
	Add(fd uintptr, userData uintptr, want EventMask) error

	// Modify changes fd's interest set.
	Modify(fd uintptr, userData uintptr, want EventMask) error

	// Remove stops watching fd.
	Remove(fd uintptr) error

	// Wait blocks up to timeoutMs (negative: forever) and fills events,
	// returning the number written.
	Wait(events []Event, timeoutMs int) (n int, err error)

	Close() error
}

// Waker is implemented by reactors that support a direct software-triggered
// wakeup instead of needing a dedicated registered fd (e.g. IOCP's
// PostQueuedCompletionStatus). The loop package falls back to a self-pipe
// or eventfd when a reactor does not implement this.
type Waker interface {
	Wake(userData uintptr) error
}

// Event reports readiness for one registered handle.
type Event struct {
	Fd       uintptr
	UserData uintptr
	Readable bool
	Writable bool
	Error    bool
	Hangup   bool
}
