//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"golang.org/x/sys/unix"
)

// linuxReactor is an epoll-based event reactor.
type linuxReactor struct {
	epfd int
	fds  *fdTable
}

// New constructs a new platform-specific EventReactor for Linux.
func New() (EventReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &linuxReactor{epfd: epfd, fds: newFDTable()}, nil
}

func maskToEpoll(want EventMask) uint32 {
	var ev uint32
	if want&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if want&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (r *linuxReactor) Add(fd, userData uintptr, want EventMask) error {
	r.fds.set(fd, userData)
	ev := &unix.EpollEvent{Events: maskToEpoll(want), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), ev)
}

func (r *linuxReactor) Modify(fd, userData uintptr, want EventMask) error {
	r.fds.set(fd, userData)
	ev := &unix.EpollEvent{Events: maskToEpoll(want), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, int(fd), ev)
}

func (r *linuxReactor) Remove(fd uintptr) error {
	r.fds.remove(fd)
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

func (r *linuxReactor) Wait(events []Event, timeoutMs int) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(r.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		e := raw[i]
		fd := uintptr(e.Fd)
		events[i] = Event{
			Fd:       fd,
			UserData: r.fds.get(fd),
			Readable: e.Events&unix.EPOLLIN != 0,
			Writable: e.Events&unix.EPOLLOUT != 0,
			Error:    e.Events&unix.EPOLLERR != 0,
			Hangup:   e.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0,
		}
	}
	return n, nil
}

// Close closes the epoll instance.
func (r *linuxReactor) Close() error {
	return unix.Close(r.epfd)
}
