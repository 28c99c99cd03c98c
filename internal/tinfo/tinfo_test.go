package tinfo

import "testing"

func TestDoom(t *testing.T) {
	var n Tnote_t
	if n.Doomed() {
		t.Fatal("fresh note already doomed")
	}
	n.Doom()
	if !n.Doomed() {
		t.Fatal("Doom() did not mark the note as doomed")
	}
}

func TestThreadinfoInit(t *testing.T) {
	var ti Threadinfo_t
	ti.Init()
	if ti.Notes == nil {
		t.Fatal("Init did not allocate Notes")
	}
	if len(ti.Notes) != 0 {
		t.Fatalf("fresh Threadinfo_t has %d notes, want 0", len(ti.Notes))
	}
}

func TestCurrentPerCPUSlot(t *testing.T) {
	const cpu = 3
	if Current(cpu) != nil {
		t.Fatal("CPU slot not nil before any SetCurrent")
	}

	n := &Tnote_t{}
	SetCurrent(cpu, n)
	if Current(cpu) != n {
		t.Fatal("Current did not return the note SetCurrent installed")
	}

	// A different CPU's slot must be unaffected.
	if Current(cpu+1) == n {
		t.Fatal("SetCurrent leaked into a different CPU's slot")
	}

	ClearCurrent(cpu)
	if Current(cpu) != nil {
		t.Fatal("ClearCurrent did not clear the slot")
	}
}
