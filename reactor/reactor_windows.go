//go:build windows
// +build windows

// File: reactor/reactor_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows IOCP (I/O Completion Port) reactor implementation and factory.

package reactor

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsReactor is an IOCP-based event reactor. Unlike epoll/kqueue, IOCP
// has no interest-set toggling: a handle is associated with the port once,
// and readiness for a specific operation follows from posting (or not
// posting) overlapped reads/writes, not from re-registering the handle.
type windowsReactor struct {
	iocp windows.Handle
}

// New constructs a new platform-specific EventReactor for Windows.
func New() (EventReactor, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &windowsReactor{iocp: port}, nil
}

func (r *windowsReactor) Add(fd, userData uintptr, _ EventMask) error {
	h := windows.Handle(fd)
	_, err := windows.CreateIoCompletionPort(h, r.iocp, userData, 0)
	return err
}

// Modify is a no-op; see the type doc.
func (r *windowsReactor) Modify(fd, userData uintptr, want EventMask) error { return nil }

// Remove is a no-op; IOCP has no explicit disassociate, the handle drops
// out of the port when it is closed.
func (r *windowsReactor) Remove(fd uintptr) error { return nil }

func (r *windowsReactor) Wait(events []Event, timeoutMs int) (int, error) {
	if len(events) == 0 {
		return 0, errors.New("reactor: empty event buffer")
	}

	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped

	timeout := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}

	err := windows.GetQueuedCompletionStatus(r.iocp, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if err == windows.WAIT_TIMEOUT {
			return 0, nil
		}
		return 0, err
	}
	events[0] = Event{
		Fd:       uintptr(unsafe.Pointer(overlapped)),
		UserData: key,
		Readable: true,
		Writable: true,
	}
	return 1, nil
}

// Wake posts a zero-byte completion carrying userData, letting the loop
// package use IOCP's native wakeup instead of a self-pipe fd.
func (r *windowsReactor) Wake(userData uintptr) error {
	return windows.PostQueuedCompletionStatus(r.iocp, 0, userData, nil)
}

// Close closes the IOCP handle.
func (r *windowsReactor) Close() error {
	return windows.CloseHandle(r.iocp)
}

var _ Waker = (*windowsReactor)(nil)
