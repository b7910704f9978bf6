// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import (
	"bytes"
	"testing"
)

func TestAppendRetrieveRoundTrip(t *testing.T) {
	b := New()
	input := []byte("the quick brown fox jumps over the lazy dog")

	b.Append(input[:10])
	b.Append(input[10:])

	got := b.RetrieveAllAsBytes()
	if !bytes.Equal(got, input) {
		t.Fatalf("round trip mismatch: got %q want %q", got, input)
	}
	if b.ReadableBytes() != 0 {
		t.Fatalf("expected empty buffer after full retrieve, got %d readable", b.ReadableBytes())
	}
}

func TestEnsureWritableZeroNeverReallocates(t *testing.T) {
	b := NewSize(16)
	before := b.WritableBytes()
	b.EnsureWritable(0)
	if b.WritableBytes() != before {
		t.Fatalf("EnsureWritable(0) changed writable bytes: %d -> %d", before, b.WritableBytes())
	}
}

func TestEnsureWritableShiftsBeforeGrowing(t *testing.T) {
	b := NewSize(16)
	b.Append(bytes.Repeat([]byte{'a'}, 10))
	b.Retrieve(10) // Retrieve(all) resets both cursors to prependSize.

	// Refill readable bytes so there is something behind the writer but the
	// prepend region is free to reclaim.
	b.Append(bytes.Repeat([]byte{'b'}, 16))
	b.Retrieve(8) // leaves 8 readable bytes, 8 bytes of "used then freed" space ahead of reader.

	capBefore := len(b.buf)
	b.EnsureWritable(8) // writable(0) + (readerIndex-prependSize)(8) suffices via shift.
	if len(b.buf) != capBefore {
		t.Fatalf("expected shift-before-grow to avoid reallocation, capacity changed %d -> %d", capBefore, len(b.buf))
	}
	if b.readerIndex != b.prependSize {
		t.Fatalf("expected reader shifted to prepend boundary, got %d want %d", b.readerIndex, b.prependSize)
	}
}

func TestPrependWritesBeforeReader(t *testing.T) {
	b := New()
	b.Append([]byte("payload"))
	b.Prepend([]byte{0, 0, 0, 7})

	got := b.Peek()
	want := append([]byte{0, 0, 0, 7}, []byte("payload")...)
	if !bytes.Equal(got, want) {
		t.Fatalf("prepend mismatch: got %q want %q", got, want)
	}
}

func TestRetrieveAllResetsCursors(t *testing.T) {
	b := New()
	b.Append([]byte("hello"))
	b.Retrieve(b.ReadableBytes())
	if b.readerIndex != b.prependSize || b.writerIndex != b.prependSize {
		t.Fatalf("expected cursors reset to prepend boundary, got reader=%d writer=%d prepend=%d",
			b.readerIndex, b.writerIndex, b.prependSize)
	}
}

func TestBeginWriteHasWritten(t *testing.T) {
	b := New()
	dst := b.BeginWrite()
	n := copy(dst, []byte("abc"))
	b.HasWritten(n)
	if got := string(b.Peek()); got != "abc" {
		t.Fatalf("got %q want abc", got)
	}
}
