// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"bytes"
	"errors"
	"testing"
)

func TestOutputBufferManagerAppendThenDrainPreservesBytes(t *testing.T) {
	m := newOutputBufferManager()
	m.Append([]byte("hello "))
	m.Append([]byte("world"))

	if got, want := m.Readable(), len("hello world"); got != want {
		t.Fatalf("Readable() = %d, want %d", got, want)
	}

	var written bytes.Buffer
	done, err := m.Drain(func(b []byte) (int, error) {
		written.Write(b)
		return len(b), nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !done {
		t.Fatalf("expected Drain to report fully drained")
	}
	if written.String() != "hello world" {
		t.Fatalf("got %q, want %q", written.String(), "hello world")
	}
	if !m.Empty() {
		t.Fatalf("expected manager empty after full drain")
	}
}

func TestOutputBufferManagerDrainStopsOnZeroProgress(t *testing.T) {
	m := newOutputBufferManager()
	m.Append([]byte("abc"))

	calls := 0
	done, err := m.Drain(func(b []byte) (int, error) {
		calls++
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if done {
		t.Fatalf("expected Drain not done when write makes zero progress")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one write attempt, got %d", calls)
	}
	if m.Readable() != 3 {
		t.Fatalf("expected bytes to remain buffered, got %d readable", m.Readable())
	}
}

func TestOutputBufferManagerDrainPropagatesError(t *testing.T) {
	m := newOutputBufferManager()
	m.Append([]byte("abc"))

	boom := errors.New("boom")
	_, err := m.Drain(func(b []byte) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected propagated error, got %v", err)
	}
}

func TestOutputBufferManagerPartialWritesAcrossCalls(t *testing.T) {
	m := newOutputBufferManager()
	m.Append([]byte("0123456789"))

	var written bytes.Buffer
	writeOneByteAtATime := func(b []byte) (int, error) {
		written.WriteByte(b[0])
		return 1, nil
	}
	for i := 0; i < 10; i++ {
		done, err := m.Drain(writeOneByteAtATime)
		if err != nil {
			t.Fatalf("Drain: %v", err)
		}
		if i < 9 && done {
			t.Fatalf("expected not done before all bytes written")
		}
	}
	if written.String() != "0123456789" {
		t.Fatalf("got %q", written.String())
	}
}
