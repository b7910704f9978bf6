// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package buffer implements the core's growable byte buffer: a prepend
// region ahead of a readable/writable cursor pair, so message framers can
// splice in a length header without reallocating, and so appends amortize
// to linear cost in total bytes written.
package buffer

const (
	defaultPrependSize = 8
	defaultInitialSize = 1024
)

// Buffer is an ordered byte sequence split into three regions:
//
//	0        prependSize   readerIndex          writerIndex         len(buf)
//	|--prepend----|---------|------readable-------|------writable-----|
//
// Invariant: 0 <= prependSize <= readerIndex <= writerIndex <= len(buf).
// All operations are synchronous, non-blocking, and not safe for
// concurrent use — a Buffer belongs to exactly one connection or caller.
type Buffer struct {
	buf         []byte
	readerIndex int
	writerIndex int
	prependSize int
}

// New returns a Buffer with the default initial capacity.
func New() *Buffer { return NewSize(defaultInitialSize) }

// NewSize returns a Buffer with room for at least initial writable bytes.
func NewSize(initial int) *Buffer {
	return &Buffer{
		buf:         make([]byte, defaultPrependSize+initial),
		readerIndex: defaultPrependSize,
		writerIndex: defaultPrependSize,
		prependSize: defaultPrependSize,
	}
}

func (b *Buffer) ReadableBytes() int    { return b.writerIndex - b.readerIndex }
func (b *Buffer) WritableBytes() int    { return len(b.buf) - b.writerIndex }
func (b *Buffer) PrependableBytes() int { return b.readerIndex }

// Peek returns a stable view into the readable region, valid until the
// next mutating call on this Buffer.
func (b *Buffer) Peek() []byte { return b.buf[b.readerIndex:b.writerIndex] }

// Retrieve advances the reader cursor by n bytes (clamped to
// ReadableBytes). Once the readable region is fully consumed, both cursors
// reset to just past the prepend region so future appends reuse the space
// instead of growing.
func (b *Buffer) Retrieve(n int) {
	if n > b.ReadableBytes() {
		n = b.ReadableBytes()
	}
	if n < b.ReadableBytes() {
		b.readerIndex += n
		return
	}
	b.readerIndex = b.prependSize
	b.writerIndex = b.prependSize
}

// RetrieveAllAsBytes copies out the full readable region and resets the
// buffer.
func (b *Buffer) RetrieveAllAsBytes() []byte {
	out := make([]byte, b.ReadableBytes())
	copy(out, b.Peek())
	b.Retrieve(b.ReadableBytes())
	return out
}

// RetrieveAllAsString is RetrieveAllAsBytes with a string conversion.
func (b *Buffer) RetrieveAllAsString() string {
	s := string(b.Peek())
	b.Retrieve(b.ReadableBytes())
	return s
}

// Append ensures room for data, copies it in, and advances the writer
// cursor.
func (b *Buffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	copy(b.buf[b.writerIndex:], data)
	b.writerIndex += len(data)
}

// EnsureWritable guarantees WritableBytes() >= n, preferring to shift the
// readable region down over the unused prepend space before ever
// reallocating. EnsureWritable(0) is always a no-op, never reallocating.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.WritableBytes()+(b.readerIndex-b.prependSize) >= n {
		b.shiftReadableToPrependBoundary()
		return
	}
	b.grow(n)
}

// shiftReadableToPrependBoundary slides the readable region left to just
// past the prepend boundary, reclaiming the space behind the reader
// without a reallocation.
func (b *Buffer) shiftReadableToPrependBoundary() {
	readable := b.ReadableBytes()
	copy(b.buf[b.prependSize:], b.buf[b.readerIndex:b.writerIndex])
	b.readerIndex = b.prependSize
	b.writerIndex = b.prependSize + readable
}

func (b *Buffer) grow(n int) {
	need := b.writerIndex + n
	if need < 2*len(b.buf) {
		need = 2 * len(b.buf)
	}
	newBuf := make([]byte, need)
	copy(newBuf, b.buf[:b.writerIndex])
	b.buf = newBuf
}

// Prepend writes data immediately before the readable region, moving the
// reader cursor back. It panics if data is longer than PrependableBytes —
// callers are expected to size their headers within the fixed prepend
// budget, not to grow it.
func (b *Buffer) Prepend(data []byte) {
	if len(data) > b.readerIndex {
		panic("buffer: prepend exceeds prependable bytes")
	}
	b.readerIndex -= len(data)
	copy(b.buf[b.readerIndex:], data)
}

// BeginWrite exposes the writable region for an I/O completion to fill
// directly, avoiding an intermediate copy.
func (b *Buffer) BeginWrite() []byte { return b.buf[b.writerIndex:] }

// HasWritten commits n bytes written into the region BeginWrite exposed.
func (b *Buffer) HasWritten(n int) { b.writerIndex += n }

// Reset discards the readable region without copying, as if every byte had
// been retrieved.
func (b *Buffer) Reset() {
	b.readerIndex = b.prependSize
	b.writerIndex = b.prependSize
}
