// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package loop implements the reactor core: at most one EventLoop per
// goroutine, multiplexing registered handles through a platform reactor,
// running cross-thread work queued via RunInLoop/QueueInLoop between poll
// passes, and driving a timer.Queue for scheduled callbacks.
package loop

import (
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/momentics/goreactor/base"
	"github.com/momentics/goreactor/reactor"
	"github.com/momentics/goreactor/timer"
)

// Functor is work queued to run on the loop's own thread.
type Functor func()

// IOHandler is notified of readiness for one registered fd. The loop never
// interprets the event beyond dispatching it; TCP/UDP code owns what a
// readable or writable fd means.
type IOHandler interface {
	HandleIO(ev reactor.Event)
}

// socketFactory mints a ready-to-use socket fd, used to keep one warm spare
// socket in the loop's free-socket slot without importing the tcp package
// (which itself depends on loop).
type socketFactory func() (int, error)

// EventLoop is a single-threaded reactor: every registered handler, timer
// callback, and queued Functor runs on the same goroutine that calls Run.
// Other goroutines may only reach it through RunInLoop/QueueInLoop/RunAt and
// friends, never by touching loop-owned state directly.
type EventLoop struct {
	logger base.Logger

	react reactor.EventReactor
	wake  *waker

	running base.Flag
	quit    base.Flag

	gid uint64

	timers *timer.Queue

	mu      sync.Mutex
	pending *queue.Queue // of Functor
	calling base.Flag

	handlersMu sync.RWMutex
	handlers   map[uintptr]IOHandler

	ctxMu sync.RWMutex
	ctx   any

	iteration        int64
	pollReturnTime   time.Time
	pollReturnTimeMu sync.RWMutex

	tcpFactory socketFactory
	udpFactory socketFactory
	freeTCP    int
	freeUDP    int
}

// New creates an EventLoop bound to a freshly created platform reactor. The
// returned loop is not yet running; call Run from the goroutine that is to
// own it.
func New(opts ...Option) (*EventLoop, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	react, err := reactor.New()
	if err != nil {
		return nil, fmt.Errorf("loop: create reactor: %w", err)
	}

	w, err := newWaker(react)
	if err != nil {
		_ = react.Close()
		return nil, fmt.Errorf("loop: create waker: %w", err)
	}

	l := &EventLoop{
		logger:   cfg.logger,
		react:    react,
		wake:     w,
		timers:   timer.NewQueue(),
		pending:  queue.New(),
		handlers: make(map[uintptr]IOHandler),
		freeTCP:  -1,
		freeUDP:  -1,
	}
	return l, nil
}

// SetTCPSocketFactory installs the callback used to keep one pre-opened TCP
// socket in reserve; wired from both tcp.NewAcceptor and tcp.NewConnector to
// avoid an import cycle between loop and tcp. Only Connector.connectNow
// actually consumes the slot via GetFreeTCPSocket — Acceptor's accept()
// already hands back a ready fd and has no free-socket fallback to use.
func (l *EventLoop) SetTCPSocketFactory(f socketFactory) { l.tcpFactory = f }

// SetUDPSocketFactory is UDP's analogue of SetTCPSocketFactory, wired from
// udp.NewClientConn, the genuine consumer of GetFreeUDPSocket.
func (l *EventLoop) SetUDPSocketFactory(f socketFactory) { l.udpFactory = f }

// GetFreeTCPSocket hands the loop's one pre-opened spare TCP socket fd to
// the caller (tcp.Connector, which must own a socket before it can call
// connect()) and immediately tries to replenish the spare for next time.
// Returns false if the slot is empty, which it is on the first call; that
// call then fills the slot from the installed factory, if any, so a later
// call can hit.
func (l *EventLoop) GetFreeTCPSocket() (int, bool) {
	l.assertInLoopThread()
	if l.freeTCP < 0 {
		l.replenishTCP()
		return 0, false
	}
	fd := l.freeTCP
	l.freeTCP = -1
	l.replenishTCP()
	return fd, true
}

func (l *EventLoop) replenishTCP() {
	if l.tcpFactory == nil || l.freeTCP >= 0 {
		return
	}
	fd, err := l.tcpFactory()
	if err != nil {
		l.logger.Log(base.LevelWarn, "replenish spare tcp socket failed", "err", err)
		return
	}
	l.freeTCP = fd
}

// GetFreeUDPSocket is UDP's analogue of GetFreeTCPSocket.
func (l *EventLoop) GetFreeUDPSocket() (int, bool) {
	l.assertInLoopThread()
	if l.freeUDP < 0 {
		l.replenishUDP()
		return 0, false
	}
	fd := l.freeUDP
	l.freeUDP = -1
	l.replenishUDP()
	return fd, true
}

func (l *EventLoop) replenishUDP() {
	if l.udpFactory == nil || l.freeUDP >= 0 {
		return
	}
	fd, err := l.udpFactory()
	if err != nil {
		l.logger.Log(base.LevelWarn, "replenish spare udp socket failed", "err", err)
		return
	}
	l.freeUDP = fd
}

// Register adds fd to the reactor's interest set and routes its readiness
// to h. Must be called from the loop thread.
func (l *EventLoop) Register(fd uintptr, want reactor.EventMask, h IOHandler) error {
	l.assertInLoopThread()
	l.handlersMu.Lock()
	l.handlers[fd] = h
	l.handlersMu.Unlock()
	if err := l.react.Add(fd, fd, want); err != nil {
		l.handlersMu.Lock()
		delete(l.handlers, fd)
		l.handlersMu.Unlock()
		return err
	}
	return nil
}

// ModifyInterest changes fd's watched event set.
func (l *EventLoop) ModifyInterest(fd uintptr, want reactor.EventMask) error {
	l.assertInLoopThread()
	return l.react.Modify(fd, fd, want)
}

// Unregister stops watching fd and forgets its handler.
func (l *EventLoop) Unregister(fd uintptr) error {
	l.assertInLoopThread()
	l.handlersMu.Lock()
	delete(l.handlers, fd)
	l.handlersMu.Unlock()
	return l.react.Remove(fd)
}

// Run blocks, polling and dispatching until Quit is called. Must run on the
// goroutine that is to own this loop.
func (l *EventLoop) Run() {
	if !l.running.CompareAndSwap(false, true) {
		panic(base.ErrAlreadyRunning)
	}
	l.gid = base.GoroutineID()
	loopsByGoroutine.Set(l.gid, l)
	defer func() {
		loopsByGoroutine.Clear(l.gid)
		l.running.Set(false)
	}()

	events := make([]reactor.Event, 256)
	for !l.quit.Get() {
		timeoutMs := l.pollTimeoutMs()

		n, err := l.react.Wait(events, timeoutMs)
		l.setPollReturnTime(time.Now())
		l.iteration++
		if err != nil {
			l.logger.Log(base.LevelWarn, "reactor wait error", "err", err)
			continue
		}

		for i := 0; i < n; i++ {
			l.dispatch(events[i])
		}

		l.timers.ExpireAndRun(l.PollReturnTime())
		l.doPendingFunctors()
	}
	l.shutdownSequence()
}

func (l *EventLoop) dispatch(ev reactor.Event) {
	if ev.UserData == wakeUserData {
		l.wake.drain()
		return
	}
	l.handlersMu.RLock()
	h := l.handlers[ev.UserData]
	l.handlersMu.RUnlock()
	if h != nil {
		h.HandleIO(ev)
	}
}

func (l *EventLoop) pollTimeoutMs() int {
	next, ok := l.timers.NextExpiry()
	if !ok {
		return 10_000
	}
	d := time.Until(next)
	if d <= 0 {
		return 0
	}
	ms := int(d / time.Millisecond)
	if ms > 10_000 {
		return 10_000
	}
	return ms
}

// Quit signals the loop to stop after its current iteration. Safe from any
// goroutine.
func (l *EventLoop) Quit() {
	l.quit.Set(true)
	if l.gid != base.GoroutineID() {
		_ = l.wake.wake()
	}
}

func (l *EventLoop) shutdownSequence() {
	l.doPendingFunctors()
	_ = l.wake.close(l.react)
	_ = l.react.Close()
}

// IsInLoopThread reports whether the calling goroutine is this loop's owner.
func (l *EventLoop) IsInLoopThread() bool {
	return l.running.Get() && base.GoroutineID() == l.gid
}

func (l *EventLoop) assertInLoopThread() {
	if l.running.Get() && !l.IsInLoopThread() {
		panic(base.ErrWrongThread)
	}
}

// RunInLoop runs fn on the loop thread: immediately if already called from
// it, otherwise queued and the loop woken. Safe from any goroutine.
func (l *EventLoop) RunInLoop(fn Functor) {
	if l.IsInLoopThread() {
		fn()
		return
	}
	l.QueueInLoop(fn)
}

// QueueInLoop always defers fn to run after the loop's next poll returns,
// even when called from the loop thread itself — useful to avoid reentrancy
// into code that is not safe to call from inside doPendingFunctors.
func (l *EventLoop) QueueInLoop(fn Functor) {
	l.mu.Lock()
	l.pending.Add(fn)
	l.mu.Unlock()

	if !l.IsInLoopThread() || l.calling.Get() {
		_ = l.wake.wake()
	}
}

func (l *EventLoop) doPendingFunctors() {
	l.calling.Set(true)
	defer l.calling.Set(false)

	l.mu.Lock()
	n := l.pending.Length()
	batch := make([]Functor, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, l.pending.Remove().(Functor))
	}
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
}

// RunAt schedules cb to run once at when. Safe from any goroutine; the
// returned TimerId may be cancelled even before the loop has armed it.
func (l *EventLoop) RunAt(when time.Time, cb Functor) timer.TimerId {
	t, id := l.timers.NewTimer(timer.Callback(cb), when, 0)
	l.RunInLoop(func() { l.timers.Arm(t) })
	return id
}

// RunAfter schedules cb to run once after delay elapses.
func (l *EventLoop) RunAfter(delay time.Duration, cb Functor) timer.TimerId {
	return l.RunAt(time.Now().Add(delay), cb)
}

// RunEvery schedules cb to run every interval, starting after the first
// interval elapses.
func (l *EventLoop) RunEvery(interval time.Duration, cb Functor) timer.TimerId {
	when := time.Now().Add(interval)
	t, id := l.timers.NewTimer(timer.Callback(cb), when, interval)
	l.RunInLoop(func() { l.timers.Arm(t) })
	return id
}

// Cancel cancels a previously scheduled timer. Safe from any goroutine.
func (l *EventLoop) Cancel(id timer.TimerId) {
	l.RunInLoop(func() { l.timers.Cancel(id) })
}

// PollReturnTime is the timestamp the most recent reactor.Wait returned at,
// usable as a cheap substitute for time.Now() within one iteration's worth
// of handler callbacks.
func (l *EventLoop) PollReturnTime() time.Time {
	l.pollReturnTimeMu.RLock()
	defer l.pollReturnTimeMu.RUnlock()
	if l.pollReturnTime.IsZero() {
		return time.Now()
	}
	return l.pollReturnTime
}

func (l *EventLoop) setPollReturnTime(t time.Time) {
	l.pollReturnTimeMu.Lock()
	l.pollReturnTime = t
	l.pollReturnTimeMu.Unlock()
}

// Iteration is the number of completed poll passes, for diagnostics.
func (l *EventLoop) Iteration() int64 { return l.iteration }

// SetContext attaches an arbitrary value to the loop, mirroring per-loop
// user data slots handlers can stash request-scoped state in.
func (l *EventLoop) SetContext(v any) {
	l.ctxMu.Lock()
	l.ctx = v
	l.ctxMu.Unlock()
}

// Context retrieves the value set by SetContext, if any.
func (l *EventLoop) Context() any {
	l.ctxMu.RLock()
	defer l.ctxMu.RUnlock()
	return l.ctx
}
