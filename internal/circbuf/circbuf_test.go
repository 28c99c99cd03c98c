package circbuf

import (
	"bytes"
	"testing"
)

func TestWriteAndSnapshot(t *testing.T) {
	var cb Circbuf_t
	cb.Init(8)

	if !cb.Empty() {
		t.Fatal("fresh buffer not Empty")
	}

	cb.Write([]byte("abc"))
	if cb.Empty() {
		t.Fatal("buffer Empty after Write")
	}
	if cb.Used() != 3 {
		t.Fatalf("Used() = %d, want 3", cb.Used())
	}
	if !bytes.Equal(cb.Snapshot(), []byte("abc")) {
		t.Fatalf("Snapshot() = %q, want %q", cb.Snapshot(), "abc")
	}
}

func TestWriteWrapsAndDiscardsOldest(t *testing.T) {
	var cb Circbuf_t
	cb.Init(4)

	cb.Write([]byte("abcd"))
	if !cb.Full() {
		t.Fatal("buffer not Full after filling to capacity")
	}

	cb.Write([]byte("ef"))
	if !cb.Full() {
		t.Fatal("buffer not Full after a wrapping write")
	}
	if got := cb.Snapshot(); !bytes.Equal(got, []byte("cdef")) {
		t.Fatalf("Snapshot() = %q, want %q", got, "cdef")
	}
}

func TestWriteLargerThanCapacityKeepsTail(t *testing.T) {
	var cb Circbuf_t
	cb.Init(4)

	cb.Write([]byte("0123456789"))
	if got := cb.Snapshot(); !bytes.Equal(got, []byte("6789")) {
		t.Fatalf("Snapshot() = %q, want %q", got, "6789")
	}
}

func TestWriteUninitializedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Write on an uninitialized Circbuf_t did not panic")
		}
	}()
	var cb Circbuf_t
	cb.Write([]byte("x"))
}
