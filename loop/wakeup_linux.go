//go:build linux

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import "golang.org/x/sys/unix"

// eventfdWake is a wakeFD backed by a Linux eventfd: one fd serves as both
// read and write end, and a write of any nonzero uint64 coalesces with any
// pending unread value instead of requiring a byte per wakeup.
type eventfdWake struct {
	fd int
}

func newWakeFD() (wakeFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &eventfdWake{fd: fd}, nil
}

func (w *eventfdWake) Fd() uintptr { return uintptr(w.fd) }

func (w *eventfdWake) Notify() error {
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(w.fd, one[:])
	if err == unix.EAGAIN {
		// Counter already non-zero and at saturation; a pending wakeup
		// is already visible to the loop, so this is not an error.
		return nil
	}
	return err
}

func (w *eventfdWake) Drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *eventfdWake) Close() error { return unix.Close(w.fd) }
