// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/goreactor/buffer"
)

// segmentPool recycles drained output-buffer segments. Unlike a bare
// sync.Pool, Put resets the segment before returning it to the pool, so
// every caller-visible Get always yields an empty, ready-to-append buffer
// — the recycling contract this connection's Append/Drain pair actually
// needs, rather than a generic get/put wrapper callers would each have to
// remember to reset themselves.
type segmentPool struct {
	pool sync.Pool
}

func newSegmentPool() *segmentPool {
	return &segmentPool{pool: sync.Pool{New: func() any { return buffer.New() }}}
}

func (p *segmentPool) get() *buffer.Buffer { return p.pool.Get().(*buffer.Buffer) }

func (p *segmentPool) put(b *buffer.Buffer) {
	b.Reset()
	p.pool.Put(b)
}

// outputBufferManager is the connection's pending-write storage: logically a
// list of buffers acting as a ring, per the component design's rationale
// that a single growable buffer would either reallocate mid-write
// (invalidating any pointer already handed to the OS) or force a copy. New
// data appends to the tail segment; draining reads from the head segment;
// a segment that has been fully written returns to the free-list pool
// instead of being reallocated on the next send.
//
// eapache/queue's ring-buffer FIFO is the underlying storage: Add appends a
// new tail segment, Peek/Remove operate on the head.
type outputBufferManager struct {
	segments *queue.Queue
	free     *segmentPool
}

func newOutputBufferManager() *outputBufferManager {
	return &outputBufferManager{
		segments: queue.New(),
		free:     newSegmentPool(),
	}
}

// Readable is the total bytes across all segments still awaiting write,
// i.e. the sum of submitted-but-not-completed write lengths.
func (m *outputBufferManager) Readable() int {
	total := 0
	for i := 0; i < m.segments.Length(); i++ {
		total += m.segments.Get(i).(*buffer.Buffer).ReadableBytes()
	}
	return total
}

func (m *outputBufferManager) Empty() bool { return m.segments.Length() == 0 }

// Append copies data into the tail segment, advancing to a fresh one (from
// the free-list pool, or newly allocated) when the current tail lacks room
// and still holds unread bytes — a segment with in-flight reads can't be
// reallocated out from under a prior Peek.
func (m *outputBufferManager) Append(data []byte) {
	if m.segments.Length() == 0 {
		m.segments.Add(m.free.get())
	}
	tail := m.segments.Get(m.segments.Length() - 1).(*buffer.Buffer)
	if tail.WritableBytes() < len(data) && tail.ReadableBytes() > 0 {
		tail = m.free.get()
		m.segments.Add(tail)
	}
	tail.Append(data)
}

// Drain calls write once per head segment with that segment's readable
// bytes, retiring a segment to the free list as soon as it empties, and
// stopping at the first write that leaves its segment non-empty (a short
// write, zero progress, EAGAIN, or a genuine write error). A transient EAGAIN is reported back as "no
// progress, no error" rather than propagated, matching the read side's
// handling of the same condition: it is not a failure, just a spurious
// readiness wakeup. Returns done == true once every segment has fully
// drained.
func (m *outputBufferManager) Drain(write func([]byte) (int, error)) (done bool, err error) {
	for m.segments.Length() > 0 {
		head := m.segments.Peek().(*buffer.Buffer)
		if head.ReadableBytes() == 0 {
			m.segments.Remove()
			m.free.put(head)
			continue
		}
		n, werr := write(head.Peek())
		if n > 0 {
			head.Retrieve(n)
		}
		if werr != nil {
			if isEAGAIN(werr) {
				return false, nil
			}
			return false, werr
		}
		if n == 0 {
			return false, nil
		}
		if head.ReadableBytes() > 0 {
			// Short write: the rest waits for the next writable event.
			return false, nil
		}
	}
	return true, nil
}
