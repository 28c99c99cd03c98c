package caller

import (
	"strings"
	"testing"
)

func TestDumpContainsThisFile(t *testing.T) {
	s := Dump(0)
	if !strings.Contains(s, "caller_test.go") {
		t.Fatalf("Dump(0) = %q, want it to mention caller_test.go", s)
	}
}

func TestSeenOnceFirstTrueThenFalse(t *testing.T) {
	var s SeenOnce
	const pc = uintptr(0xdeadbeef)

	if !s.Check(pc) {
		t.Fatal("first Check(pc) returned false, want true")
	}
	if s.Check(pc) {
		t.Fatal("second Check(pc) returned true, want false")
	}

	const other = uintptr(0xcafef00d)
	if !s.Check(other) {
		t.Fatal("first Check of a different pc returned false, want true")
	}
}
