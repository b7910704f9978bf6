//go:build darwin || freebsd || netbsd || openbsd || dragonfly

// File: reactor/reactor_bsd.go
// Author: momentics <momentics@gmail.com>
//
// kqueue(2)-based reactor implementation for Darwin/BSD, the counterpart
// to reactor_linux.go's epoll implementation.

package reactor

import "golang.org/x/sys/unix"

type bsdReactor struct {
	kq  int
	fds *fdTable
}

// New constructs a new platform-specific EventReactor for Darwin/BSD.
func New() (EventReactor, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &bsdReactor{kq: kq, fds: newFDTable()}, nil
}

func (r *bsdReactor) change(fd uintptr, want EventMask) error {
	changes := []unix.Kevent_t{
		kevent(fd, unix.EVFILT_READ, want&EventRead != 0),
		kevent(fd, unix.EVFILT_WRITE, want&EventWrite != 0),
	}
	_, err := unix.Kevent(r.kq, changes, nil, nil)
	return err
}

func kevent(fd uintptr, filter int16, on bool) unix.Kevent_t {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if !on {
		flags = unix.EV_DELETE
	}
	return unix.Kevent_t{Ident: uint64(fd), Filter: filter, Flags: flags}
}

func (r *bsdReactor) Add(fd, userData uintptr, want EventMask) error {
	r.fds.set(fd, userData)
	return r.change(fd, want)
}

func (r *bsdReactor) Modify(fd, userData uintptr, want EventMask) error {
	r.fds.set(fd, userData)
	return r.change(fd, want)
}

func (r *bsdReactor) Remove(fd uintptr) error {
	r.fds.remove(fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(r.kq, changes, nil, nil)
	return err
}

func (r *bsdReactor) Wait(events []Event, timeoutMs int) (int, error) {
	raw := make([]unix.Kevent_t, len(events))
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1e6))
		ts = &t
	}
	n, err := unix.Kevent(r.kq, nil, raw, ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		e := raw[i]
		fd := uintptr(e.Ident)
		events[i] = Event{
			Fd:       fd,
			UserData: r.fds.get(fd),
			Readable: e.Filter == unix.EVFILT_READ,
			Writable: e.Filter == unix.EVFILT_WRITE,
			Error:    e.Flags&unix.EV_ERROR != 0,
			Hangup:   e.Flags&unix.EV_EOF != 0,
		}
	}
	return n, nil
}

func (r *bsdReactor) Close() error { return unix.Close(r.kq) }
