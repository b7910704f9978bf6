// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package timer

import (
	"testing"
	"time"
)

func TestExpireAndRunFiresDueTimersInSequenceOrder(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		tm, _ := q.NewTimer(func() { order = append(order, i) }, now, 0)
		q.Arm(tm)
	}

	q.ExpireAndRun(now)

	if len(order) != 3 {
		t.Fatalf("expected 3 fires, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("expected ascending sequence tie-break, got order %v", order)
		}
	}
}

func TestCancelPreventsFire(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	fired := false
	tm, id := q.NewTimer(func() { fired = true }, now.Add(50*time.Millisecond), 0)
	q.Arm(tm)
	q.Cancel(id)

	q.ExpireAndRun(now.Add(time.Hour))
	if fired {
		t.Fatalf("expected cancelled timer not to fire")
	}
}

func TestCancelOfAlreadyFiredTimerIsNoop(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	calls := 0
	tm, id := q.NewTimer(func() { calls++ }, now, 0)
	q.Arm(tm)
	q.ExpireAndRun(now)

	q.Cancel(id) // stale id: timer already retired to the free list.
	if calls != 1 {
		t.Fatalf("expected exactly one fire, got %d", calls)
	}
}

func TestRepeatingTimerRearms(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	calls := 0
	tm, _ := q.NewTimer(func() { calls++ }, now, 10*time.Millisecond)
	q.Arm(tm)

	q.ExpireAndRun(now)
	q.ExpireAndRun(now.Add(10 * time.Millisecond))
	q.ExpireAndRun(now.Add(20 * time.Millisecond))

	if calls != 3 {
		t.Fatalf("expected repeating timer to fire 3 times, got %d", calls)
	}
}

func TestFreeListReusesRetiredTimer(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	tm1, _ := q.NewTimer(func() {}, now, 0)
	q.Arm(tm1)
	q.ExpireAndRun(now)

	tm2, _ := q.NewTimer(func() {}, now, 0)
	if tm2 != tm1 {
		t.Fatalf("expected NewTimer to reuse the retired *Timer from the free list")
	}
}

func TestWhenAlreadyPastDoesNotFireSynchronously(t *testing.T) {
	q := NewQueue()
	past := time.Now().Add(-time.Hour)

	fired := false
	tm, _ := q.NewTimer(func() { fired = true }, past, 0)
	q.Arm(tm) // Arm itself never runs the callback.

	if fired {
		t.Fatalf("Arm must not fire the callback synchronously")
	}
	q.ExpireAndRun(time.Now())
	if !fired {
		t.Fatalf("expected past-due timer to fire on the next ExpireAndRun")
	}
}
