// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import "github.com/momentics/goreactor/reactor"

// waker unifies the two ways an EventLoop can interrupt a blocked poll: a
// reactor-native software wakeup (IOCP's PostQueuedCompletionStatus) or, for
// epoll/kqueue, a registered fd nudged via eventfd/self-pipe and drained on
// the next readiness pass.
type waker struct {
	direct reactor.Waker
	fd     wakeFD
}

// wakeUserData is the sentinel userData tag the loop's Add call attaches to
// the wake fd so the poll-result dispatch loop can recognize and swallow it
// instead of routing it to a registered IOHandler.
const wakeUserData = ^uintptr(0)

func newWaker(r reactor.EventReactor) (*waker, error) {
	if direct, ok := r.(reactor.Waker); ok {
		return &waker{direct: direct}, nil
	}
	fd, err := newWakeFD()
	if err != nil {
		return nil, err
	}
	if err := r.Add(fd.Fd(), wakeUserData, reactor.EventRead); err != nil {
		_ = fd.Close()
		return nil, err
	}
	return &waker{fd: fd}, nil
}

func (w *waker) wake() error {
	if w.direct != nil {
		return w.direct.Wake(wakeUserData)
	}
	return w.fd.Notify()
}

// drain must be called by the loop whenever a poll result tags wakeUserData.
func (w *waker) drain() {
	if w.fd != nil {
		w.fd.Drain()
	}
}

func (w *waker) close(r reactor.EventReactor) error {
	if w.fd == nil {
		return nil
	}
	_ = r.Remove(w.fd.Fd())
	return w.fd.Close()
}
