package hashtable

import "testing"

func TestSetGetDel(t *testing.T) {
	ht := Mk(4)

	if _, ok := ht.Get(1); ok {
		t.Fatal("empty table returned a value")
	}

	ht.Set(1, "one")
	ht.Set(2, "two")
	if v, ok := ht.Get(1); !ok || v != "one" {
		t.Fatalf("Get(1) = %v, %v", v, ok)
	}
	if ht.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", ht.Size())
	}

	ht.Set(1, "uno")
	if v, _ := ht.Get(1); v != "uno" {
		t.Fatalf("overwrite failed: got %v", v)
	}
	if ht.Size() != 2 {
		t.Fatalf("overwrite changed Size() to %d", ht.Size())
	}

	ht.Del(1)
	if _, ok := ht.Get(1); ok {
		t.Fatal("Get(1) succeeded after Del(1)")
	}
	if ht.Size() != 1 {
		t.Fatalf("Size() = %d after Del, want 1", ht.Size())
	}

	ht.Del(999) // no-op on an absent key
	if ht.Size() != 1 {
		t.Fatalf("Del on missing key changed Size() to %d", ht.Size())
	}
}

func TestIterStopsEarly(t *testing.T) {
	ht := Mk(8)
	for i := uint64(0); i < 16; i++ {
		ht.Set(i, i*i)
	}

	seen := 0
	ht.Iter(func(k uint64, v interface{}) bool {
		seen++
		return seen == 3
	})
	if seen != 3 {
		t.Fatalf("Iter visited %d entries, want early stop at 3", seen)
	}

	total := 0
	ht.Iter(func(k uint64, v interface{}) bool {
		if v.(uint64) != k*k {
			t.Fatalf("key %d has value %v, want %d", k, v, k*k)
		}
		total++
		return false
	})
	if total != 16 {
		t.Fatalf("Iter visited %d entries, want 16", total)
	}
}

func TestManyBucketsDistributeKeys(t *testing.T) {
	ht := Mk(16)
	for i := uint64(0); i < 64; i++ {
		ht.Set(i, i)
	}
	if ht.Size() != 64 {
		t.Fatalf("Size() = %d, want 64", ht.Size())
	}
	for i := uint64(0); i < 64; i++ {
		if v, ok := ht.Get(i); !ok || v.(uint64) != i {
			t.Fatalf("Get(%d) = %v, %v", i, v, ok)
		}
	}
}
