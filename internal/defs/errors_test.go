package defs

import "testing"

func TestThreadStateString(t *testing.T) {
	cases := []struct {
		s    ThreadState
		want string
	}{
		{Running, "running"},
		{Ready, "ready"},
		{Blocked, "blocked"},
		{Waiting, "waiting"},
		{Terminated, "terminated"},
		{ThreadState(99), "unknown"},
	}
	for _, c := range cases {
		if got := c.s.String(); got != c.want {
			t.Errorf("ThreadState(%d).String() = %q, want %q", c.s, got, c.want)
		}
	}
}
