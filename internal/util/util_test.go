package util

import "testing"

func TestMin(t *testing.T) {
	if Min(3, 5) != 3 {
		t.Fatal("Min(3, 5) != 3")
	}
	if Min(5, 3) != 3 {
		t.Fatal("Min(5, 3) != 3")
	}
	if Min(uint64(7), uint64(7)) != 7 {
		t.Fatal("Min(7, 7) != 7")
	}
}

func TestRounddownRoundup(t *testing.T) {
	if Rounddown(4097, 4096) != 4096 {
		t.Fatalf("Rounddown(4097, 4096) = %d, want 4096", Rounddown(4097, 4096))
	}
	if Rounddown(4096, 4096) != 4096 {
		t.Fatalf("Rounddown(4096, 4096) = %d, want 4096", Rounddown(4096, 4096))
	}
	if Roundup(1, 4096) != 4096 {
		t.Fatalf("Roundup(1, 4096) = %d, want 4096", Roundup(1, 4096))
	}
	if Roundup(4096, 4096) != 4096 {
		t.Fatalf("Roundup(4096, 4096) = %d, want 4096", Roundup(4096, 4096))
	}
	if Roundup(4097, 4096) != 8192 {
		t.Fatalf("Roundup(4097, 4096) = %d, want 8192", Roundup(4097, 4096))
	}
}

func TestReadnWriten(t *testing.T) {
	buf := make([]uint8, 16)

	Writen(buf, 8, 0, 0x1122334455667788)
	if got := Readn(buf, 8, 0); got != 0x1122334455667788 {
		t.Fatalf("Readn(8) = %#x, want %#x", got, 0x1122334455667788)
	}

	Writen(buf, 4, 8, 0xcafef00d)
	if got := Readn(buf, 4, 8); got != 0xcafef00d {
		t.Fatalf("Readn(4) = %#x, want %#x", got, 0xcafef00d)
	}

	Writen(buf, 2, 12, 0xbeef)
	if got := Readn(buf, 2, 12); got != 0xbeef {
		t.Fatalf("Readn(2) = %#x, want %#x", got, 0xbeef)
	}

	Writen(buf, 1, 14, 0xab)
	if got := Readn(buf, 1, 14); got != 0xab {
		t.Fatalf("Readn(1) = %#x, want %#x", got, 0xab)
	}
}

func TestReadnOutOfBoundsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Readn with an out-of-bounds region did not panic")
		}
	}()
	Readn(make([]uint8, 4), 8, 0)
}

func TestWritenUnsupportedSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Writen with an unsupported size did not panic")
		}
	}()
	Writen(make([]uint8, 4), 3, 0, 0)
}
