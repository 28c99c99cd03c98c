package ustr

import "testing"

func TestEq(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"kernel", "kernel", true},
		{"kernel", "init", false},
		{"", "", true},
		{"foo", "foobar", false},
	}
	for _, c := range cases {
		if got := Mk(c.a).Eq(Mk(c.b)); got != c.want {
			t.Errorf("Mk(%q).Eq(Mk(%q)) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestMkUstrSliceTruncatesAtNUL(t *testing.T) {
	buf := []uint8{'i', 'n', 'i', 't', 0, 'x', 'x', 'x'}
	got := MkUstrSlice(buf)
	if got.String() != "init" {
		t.Fatalf("MkUstrSlice = %q, want %q", got.String(), "init")
	}
}

func TestMkUstrSliceNoNUL(t *testing.T) {
	buf := []uint8{'a', 'b', 'c'}
	got := MkUstrSlice(buf)
	if got.String() != "abc" {
		t.Fatalf("MkUstrSlice = %q, want %q", got.String(), "abc")
	}
}

func TestStringRoundTrip(t *testing.T) {
	if Mk("process-name").String() != "process-name" {
		t.Fatal("round trip through Mk/String changed the value")
	}
}
