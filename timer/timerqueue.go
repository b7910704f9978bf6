// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package timer

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// TimerId is a weak, ABA-safe handle returned by NewTimer: the underlying
// *Timer plus the sequence it was armed with. Cancel only takes effect if
// the timer at that slot still carries the same sequence — a timer that
// already fired (and was recycled for something else) is a silent no-op,
// never a use-after-free.
type TimerId struct {
	timer    *Timer
	sequence uint64
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].expiry.Equal(h[j].expiry) {
		return h[i].sequence < h[j].sequence
	}
	return h[i].expiry.Before(h[j].expiry)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)   { *h = append(*h, x.(*Timer)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue owns a min-heap of armed timers (ordered by expiry, ties broken by
// ascending sequence) plus a free list of retired *Timer structs. A
// priority queue has no FIFO-shaped counterpart in this module's wired
// third-party dependencies (eapache/queue is a plain ring-buffer FIFO), so
// this is built on the standard library's container/heap.
type Queue struct {
	mu     sync.Mutex
	heap   timerHeap
	free   []*Timer
	active map[*Timer]bool
}

// nextSequence hands out timer sequence numbers. It is package-level, not
// per Queue, so a sequence is unique across every Queue in the process.
var nextSequence atomic.Uint64

// NewQueue creates an empty timer queue.
func NewQueue() *Queue {
	return &Queue{active: make(map[*Timer]bool)}
}

// NewTimer allocates (or reuses from the free list) a Timer and returns it
// along with its TimerId, both available immediately. The returned Timer
// is not yet armed — callers must pass it to Arm, which must run on the
// owning loop's thread; allocation itself is safe from any thread so a
// TimerId can be handed back to an off-loop caller without waiting for the
// loop to catch up.
func (q *Queue) NewTimer(cb Callback, when time.Time, interval time.Duration) (*Timer, TimerId) {
	seq := nextSequence.Add(1)

	q.mu.Lock()
	var t *Timer
	if n := len(q.free); n > 0 {
		t = q.free[n-1]
		q.free = q.free[:n-1]
	} else {
		t = &Timer{}
	}
	q.mu.Unlock()

	t.init(cb, when, interval, seq)
	return t, TimerId{timer: t, sequence: seq}
}

// Arm inserts an allocated timer into the heap. Must run on the owning
// loop's thread.
func (q *Queue) Arm(t *Timer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, t)
	q.active[t] = true
}

// Cancel retires the timer identified by id if it is still armed with the
// matching sequence. Must run on the owning loop's thread.
func (q *Queue) Cancel(id TimerId) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.active[id.timer] || id.timer.sequence != id.sequence {
		return
	}
	q.removeLocked(id.timer)
	q.free = append(q.free, id.timer)
}

func (q *Queue) removeLocked(t *Timer) {
	for i, x := range q.heap {
		if x == t {
			heap.Remove(&q.heap, i)
			break
		}
	}
	delete(q.active, t)
}

// NextExpiry reports the nearest armed deadline, if any, so the loop can
// bound its poll timeout.
func (q *Queue) NextExpiry() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return time.Time{}, false
	}
	return q.heap[0].expiry, true
}

// ExpireAndRun pops and runs every timer whose expiry is <= now, rearming
// repeaters and retiring one-shots to the free list on fire (not on
// cancel-of-a-live-timer, which retires immediately in Cancel). Must run
// on the loop thread; callbacks may themselves call NewTimer/Arm/Cancel.
func (q *Queue) ExpireAndRun(now time.Time) {
	for {
		q.mu.Lock()
		if q.heap.Len() == 0 || q.heap[0].expiry.After(now) {
			q.mu.Unlock()
			return
		}
		t := heap.Pop(&q.heap).(*Timer)
		delete(q.active, t)
		q.mu.Unlock()

		t.run()

		q.mu.Lock()
		if t.Repeat() {
			t.restart(now)
			heap.Push(&q.heap, t)
			q.active[t] = true
		} else {
			q.free = append(q.free, t)
		}
		q.mu.Unlock()
	}
}
