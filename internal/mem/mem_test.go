package mem

import "testing"

// newTestPhysmem builds a Physmem_t over a plain Go slice, bypassing
// Phys_init (which maps its bitmap storage through Dmap and needs a
// real direct map to do so). AllocateFrame/AllocateFrames/
// DeallocateFrame/scanFree never touch Dmap, so this is safe.
func newTestPhysmem(frames uint64) *Physmem_t {
	words := (frames + 63) / 64
	return &Physmem_t{
		bitmap:       make([]uint64, words),
		totalFrames:  frames,
		usableFrames: frames,
	}
}

func TestAllocateFrameReturnsDistinctFrames(t *testing.T) {
	p := newTestPhysmem(4)

	seen := map[Pa_t]bool{}
	for i := 0; i < 4; i++ {
		pa, ok := p.AllocateFrame()
		if !ok {
			t.Fatalf("AllocateFrame failed on iteration %d", i)
		}
		if seen[pa] {
			t.Fatalf("AllocateFrame returned %#x twice", pa)
		}
		seen[pa] = true
	}

	if _, ok := p.AllocateFrame(); ok {
		t.Fatal("AllocateFrame succeeded after the pool was exhausted")
	}
}

func TestAllocateFramesRequiresContiguousRun(t *testing.T) {
	p := newTestPhysmem(8)

	// Hold frames 2 and 5 so no run of 3 fits before they're freed.
	held := make([]Pa_t, 0, 2)
	for i := 0; i < 8; i++ {
		pa, _ := p.AllocateFrame()
		if i == 2 || i == 5 {
			held = append(held, pa)
		} else {
			p.DeallocateFrame(pa)
		}
	}

	if _, ok := p.AllocateFrames(3); ok {
		t.Fatal("AllocateFrames(3) succeeded despite no 3-frame run being free")
	}

	p.DeallocateFrame(held[0])
	p.DeallocateFrame(held[1])

	if _, ok := p.AllocateFrames(3); !ok {
		t.Fatal("AllocateFrames(3) failed once a 3-frame run was free")
	}
}

func TestDeallocateFrameDoubleFreePanics(t *testing.T) {
	p := newTestPhysmem(2)
	pa, ok := p.AllocateFrame()
	if !ok {
		t.Fatal("AllocateFrame failed")
	}
	p.DeallocateFrame(pa)

	defer func() {
		if recover() == nil {
			t.Fatal("double DeallocateFrame did not panic")
		}
	}()
	p.DeallocateFrame(pa)
}

func TestPgcountTracksAllocations(t *testing.T) {
	p := newTestPhysmem(4)

	if free, total := p.Pgcount(); free != 4 || total != 4 {
		t.Fatalf("Pgcount() = (%d, %d), want (4, 4)", free, total)
	}

	pa, _ := p.AllocateFrame()
	if free, _ := p.Pgcount(); free != 3 {
		t.Fatalf("Pgcount() free = %d after one allocation, want 3", free)
	}

	p.DeallocateFrame(pa)
	if free, _ := p.Pgcount(); free != 4 {
		t.Fatalf("Pgcount() free = %d after deallocation, want 4", free)
	}
}

func TestScanFreeWrapsAroundOnce(t *testing.T) {
	p := newTestPhysmem(4)
	// Allocate frames 0 and 1, leaving 2 and 3 free, then push the
	// scan hint past them so scanFree must wrap to find frame 2.
	p.AllocateFrame()
	p.AllocateFrame()
	p.nextFrame = 4

	f, ok := p.scanFree(p.nextFrame, 1)
	if !ok {
		t.Fatal("scanFree found nothing despite two free frames")
	}
	if f != 2 {
		t.Fatalf("scanFree returned frame %d, want 2", f)
	}
}
