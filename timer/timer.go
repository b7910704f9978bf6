// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package timer implements the core's monotonic-time timer service: a
// single-shot or repeating callback owned by one Queue, recycled through a
// free list to keep the hot repeat path allocation-free.
package timer

import "time"

// Callback is invoked when a Timer fires.
type Callback func()

// Timer is a scheduled callback. It is never constructed directly by
// callers; Queue.NewTimer allocates or reuses one.
type Timer struct {
	callback Callback
	expiry   time.Time
	interval time.Duration
	sequence uint64
}

func (t *Timer) init(cb Callback, expiry time.Time, interval time.Duration, seq uint64) {
	t.callback = cb
	t.expiry = expiry
	t.interval = interval
	t.sequence = seq
}

// Repeat reports whether this timer rearms itself after firing.
func (t *Timer) Repeat() bool { return t.interval > 0 }

// Expiry is this timer's next scheduled fire time.
func (t *Timer) Expiry() time.Time { return t.expiry }

// Sequence is this timer's process-wide-unique, monotonically-assigned id,
// used to tie-break timers with equal expiry and to detect a stale TimerId.
func (t *Timer) Sequence() uint64 { return t.sequence }

func (t *Timer) restart(now time.Time) {
	if t.interval > 0 {
		t.expiry = now.Add(t.interval)
	}
}

func (t *Timer) run() { t.callback() }
