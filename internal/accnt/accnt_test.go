package accnt

import "testing"

func TestUtaddSystadd(t *testing.T) {
	var a Accnt_t
	a.Utadd(100)
	a.Utadd(50)
	a.Systadd(7)

	userns, sysns := a.Snapshot()
	if userns != 150 {
		t.Fatalf("Userns = %d, want 150", userns)
	}
	if sysns != 7 {
		t.Fatalf("Sysns = %d, want 7", sysns)
	}
}

func TestFinishAddsElapsedToSystem(t *testing.T) {
	var a Accnt_t
	start := Now()
	a.Finish(start)

	_, sysns := a.Snapshot()
	if sysns < 0 {
		t.Fatalf("Sysns = %d, want >= 0", sysns)
	}
}

func TestAddFoldsCounters(t *testing.T) {
	var total, dying Accnt_t
	total.Utadd(10)
	total.Systadd(20)
	dying.Utadd(5)
	dying.Systadd(1)

	total.Add(&dying)

	userns, sysns := total.Snapshot()
	if userns != 15 || sysns != 21 {
		t.Fatalf("after Add: userns=%d sysns=%d, want 15, 21", userns, sysns)
	}
}
