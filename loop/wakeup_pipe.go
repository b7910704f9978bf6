//go:build darwin || freebsd || netbsd || openbsd || dragonfly

// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import "golang.org/x/sys/unix"

// pipeWake is a wakeFD backed by a self-pipe, for platforms whose reactor
// (kqueue) has no eventfd-equivalent counter but can watch an ordinary fd.
type pipeWake struct {
	readFd, writeFd int
}

func newWakeFD() (wakeFD, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, err
	}
	return &pipeWake{readFd: fds[0], writeFd: fds[1]}, nil
}

func (w *pipeWake) Fd() uintptr { return uintptr(w.readFd) }

func (w *pipeWake) Notify() error {
	_, err := unix.Write(w.writeFd, []byte{1})
	if err == unix.EAGAIN {
		// Pipe buffer already holds an unread wakeup byte.
		return nil
	}
	return err
}

func (w *pipeWake) Drain() {
	var buf [64]byte
	for {
		_, err := unix.Read(w.readFd, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *pipeWake) Close() error {
	_ = unix.Close(w.writeFd)
	return unix.Close(w.readFd)
}
