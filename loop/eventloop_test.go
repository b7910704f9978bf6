// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import (
	"sync"
	"testing"
	"time"

	"github.com/momentics/goreactor/base"
)

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	l, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func runLoopInBackground(t *testing.T, l *EventLoop) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		l.Run()
		close(done)
	}()
	t.Cleanup(func() {
		l.Quit()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("loop did not stop after Quit")
		}
	})
}

func TestRunInLoopExecutesImmediatelyOnLoopThread(t *testing.T) {
	l := newTestLoop(t)
	l.gid = base.GoroutineID() // pretend already on the loop thread without starting Run.
	l.running.Set(true)
	called := false
	l.RunInLoop(func() { called = true })
	if !called {
		t.Fatalf("expected RunInLoop to run synchronously on the loop thread")
	}
	l.running.Set(false)
}

func TestQueueInLoopRunsOnceTheLoopIsDraining(t *testing.T) {
	l := newTestLoop(t)
	runLoopInBackground(t, l)

	var wg sync.WaitGroup
	wg.Add(1)
	l.QueueInLoop(func() { wg.Done() })

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("queued functor never ran")
	}
}

func TestRunAfterFiresOnce(t *testing.T) {
	l := newTestLoop(t)
	runLoopInBackground(t, l)

	fired := make(chan struct{})
	l.RunAfter(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer never fired")
	}
}

func TestCancelBeforeFirePreventsCallback(t *testing.T) {
	l := newTestLoop(t)
	runLoopInBackground(t, l)

	fired := make(chan struct{})
	id := l.RunAfter(time.Hour, func() { close(fired) })
	l.Cancel(id)
	l.Quit()

	select {
	case <-fired:
		t.Fatalf("cancelled timer must not fire")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestContextRoundTrips(t *testing.T) {
	l := newTestLoop(t)
	if l.Context() != nil {
		t.Fatalf("expected nil context before SetContext")
	}
	l.SetContext("hello")
	if got := l.Context(); got != "hello" {
		t.Fatalf("expected round-tripped context, got %v", got)
	}
}

func TestQuitIsIdempotent(t *testing.T) {
	l := newTestLoop(t)
	runLoopInBackground(t, l)
	l.Quit()
	l.Quit() // must not panic or block.
}
