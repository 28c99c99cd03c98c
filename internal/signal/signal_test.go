package signal

import "testing"

func TestRegisterAndGetSignal(t *testing.T) {
	m := New(8, nil)

	if m.HasSignal(3) {
		t.Fatal("fresh manager already has signal type 3")
	}

	m.RegisterSignal(3, Signal{Type: 3, Data: [8]uint64{42}})
	if !m.HasSignal(3) {
		t.Fatal("signal type 3 not present after RegisterSignal")
	}

	s, ok := m.GetSignal(3)
	if !ok || s.Data[0] != 42 {
		t.Fatalf("GetSignal(3) = %+v, %v", s, ok)
	}
}

func TestRegisterSignalTypeZeroPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("RegisterSignal(0, ...) did not panic")
		}
	}()
	New(8, nil).RegisterSignal(0, Signal{})
}

func TestWakeUpFiresOnlyForWaitedType(t *testing.T) {
	woken := 0
	m := New(8, func() { woken++ })

	m.RegisterWaitFor(5)
	m.RegisterSignal(6, Signal{Type: 6})
	if woken != 0 {
		t.Fatalf("wake-up fired for unwaited type: woken=%d", woken)
	}

	m.RegisterSignal(5, Signal{Type: 5})
	if woken != 1 {
		t.Fatalf("wake-up did not fire for waited type: woken=%d", woken)
	}

	// A second signal of the same type no longer matches waitingFor,
	// which RegisterSignal clears after the first wake-up.
	m.RegisterSignal(5, Signal{Type: 5})
	if woken != 1 {
		t.Fatalf("wake-up fired again after waitingFor was cleared: woken=%d", woken)
	}
}

func TestDeleteSignalRemovesAllOfType(t *testing.T) {
	m := New(8, nil)
	m.RegisterSignal(2, Signal{Type: 2, Data: [8]uint64{1}})
	m.RegisterSignal(2, Signal{Type: 2, Data: [8]uint64{2}})
	m.RegisterSignal(4, Signal{Type: 4})

	m.DeleteSignal(2)
	if m.HasSignal(2) {
		t.Fatal("signal type 2 still present after DeleteSignal")
	}
	if _, ok := m.GetSignal(2); ok {
		t.Fatal("GetSignal(2) succeeded after DeleteSignal")
	}
	if !m.HasSignal(4) {
		t.Fatal("DeleteSignal(2) removed an unrelated signal type")
	}

	m.DeleteSignal(7) // no-op: type 7 was never registered
}
