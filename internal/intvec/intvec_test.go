package intvec

import "testing"

func TestAllocReturnsDistinctVectors(t *testing.T) {
	a := Alloc()
	b := Alloc()
	if a == b {
		t.Fatalf("Alloc returned the same vector twice: %d", a)
	}
	Free(a)
	Free(b)
}

func TestFreeAllowsReuse(t *testing.T) {
	a := Alloc()
	Free(a)
	b := Alloc()
	// Not guaranteed to be the same vector (map iteration order is
	// unspecified), but the pool must still hand out a valid one.
	if b < 56 {
		t.Fatalf("Alloc returned %d, want a vector >= 56", b)
	}
	Free(b)
}

func TestDoubleFreePanics(t *testing.T) {
	v := Alloc()
	Free(v)
	defer func() {
		if recover() == nil {
			t.Fatal("second Free of the same vector did not panic")
		}
	}()
	Free(v)
}
