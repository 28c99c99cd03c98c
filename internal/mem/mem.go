// Package mem implements the kernel's physical frame allocator: a single
// bitmap with one bit per 4 KiB frame, following biscuit's Physmem_t
// naming and locking style but replacing its refcounted free-list
// algorithm with the simpler mark/scan bitmap scheme used by the
// original kernel's BitmapFrameAllocator (one owner per frame, no
// sharing, so no refcounting is needed).
package mem

import (
	"fmt"
	"sync"
	"unsafe"

	"nox/internal/util"
)

// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single frame/page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks the byte offset within a page.
const PGOFFSET Pa_t = 0xfff

// PGMASK masks the page-aligned bits of an address.
const PGMASK Pa_t = ^(PGOFFSET)

// Page table entry flag bits, x86-64 long mode.
const (
	PTE_P   Pa_t = 1 << 0 // present
	PTE_W   Pa_t = 1 << 1 // writable
	PTE_U   Pa_t = 1 << 2 // user-accessible
	PTE_PCD Pa_t = 1 << 4 // cache-disable
	PTE_A   Pa_t = 1 << 5 // accessed
	PTE_D   Pa_t = 1 << 6 // dirty
	PTE_PS  Pa_t = 1 << 7 // huge page (2MiB/1GiB)
	PTE_G   Pa_t = 1 << 8 // global

	PTE_ADDR Pa_t = PGMASK
)

// Pa_t is a physical address.
type Pa_t uintptr

// Va_t is a virtual address.
type Va_t uintptr

// Pg_t is a page's contents addressed as 512 64-bit words, matching the
// width of a page-table entry.
type Pg_t [512]uint64

// Pmap_t is a single page-table page: 512 entries, one per level-4
// through level-1 slot.
type Pmap_t [512]Pa_t

// Bytepg_t is a page addressed as raw bytes.
type Bytepg_t [PGSIZE]uint8

// Pg2bytes reinterprets a page of words as a page of bytes.
func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

// Bytepg2pg reinterprets a page of bytes as a page of words.
func Bytepg2pg(pg *Bytepg_t) *Pg_t {
	return (*Pg_t)(unsafe.Pointer(pg))
}

func pg2pmap(pg *Pg_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(pg))
}

func frameOf(pa Pa_t) uint64 {
	return uint64(pa) >> PGSHIFT
}

// Region describes one entry of the bootloader-provided memory map, in
// the vocabulary internal/boot hands to Phys_init.
type Region struct {
	Base   Pa_t
	Length uint64 // bytes
	Usable bool
}

// Physmem_t is the system's bitmap frame allocator. One bit per 4 KiB
// frame: 1 means allocated (or never usable), 0 means free. NextFrame is
// a scan hint, not a correctness requirement — a wraparound scan always
// finds any free frame that exists.
type Physmem_t struct {
	sync.Mutex
	bitmap       []uint64 // one bit per frame, frame 0 is physical address 0
	totalFrames  uint64
	usableFrames uint64 // count of frames currently free
	nextFrame    uint64
}

// Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

func (p *Physmem_t) getBit(frame uint64) bool {
	return p.bitmap[frame/64]&(1<<(frame%64)) != 0
}

func (p *Physmem_t) setBit(frame uint64, v bool) {
	if v {
		p.bitmap[frame/64] |= 1 << (frame % 64)
	} else {
		p.bitmap[frame/64] &^= 1 << (frame % 64)
	}
}

// Phys_init builds the bitmap allocator from the bootloader's memory map.
// It marks every frame allocated by default, then clears the bits
// covering each usable region, then reserves the frames the bitmap
// itself occupies (carved out of the first usable region large enough to
// hold it) so the allocator never hands out its own backing storage.
func Phys_init(regions []Region) *Physmem_t {
	phys := Physmem

	var highest Pa_t
	for _, r := range regions {
		end := r.Base + Pa_t(r.Length)
		if end > highest {
			highest = end
		}
	}
	phys.totalFrames = frameOf(highest-1) + 1
	words := util.Roundup(phys.totalFrames, 64) / 64
	bitmapBytes := uint64(words) * 8

	var storage Pa_t
	found := false
	for _, r := range regions {
		if r.Usable && r.Length >= bitmapBytes {
			storage = r.Base
			found = true
			break
		}
	}
	if !found {
		panic("no usable region large enough for the frame bitmap")
	}

	phys.bitmap = unsafe.Slice((*uint64)(unsafe.Pointer(Dmap(storage))), words)
	for i := range phys.bitmap {
		phys.bitmap[i] = ^uint64(0)
	}
	phys.usableFrames = 0

	for _, r := range regions {
		if !r.Usable {
			continue
		}
		start := frameOf(r.Base)
		end := frameOf(r.Base + Pa_t(r.Length))
		for f := start; f < end; f++ {
			phys.setBit(f, false)
			phys.usableFrames++
		}
	}

	storageFrames := util.Roundup(bitmapBytes, uint64(PGSIZE)) / uint64(PGSIZE)
	first := frameOf(storage)
	for f := first; f < first+storageFrames; f++ {
		if !phys.getBit(f) {
			phys.setBit(f, true)
			phys.usableFrames--
		}
	}

	phys.nextFrame = 0
	fmt.Printf("frame allocator: %d frames usable (%d MB)\n",
		phys.usableFrames, phys.usableFrames*uint64(PGSIZE)>>20)
	return phys
}

// AllocateFrame returns one free frame, marking it allocated. ok is false
// if no frame is free.
func (phys *Physmem_t) AllocateFrame() (pa Pa_t, ok bool) {
	phys.Lock()
	defer phys.Unlock()
	f, ok := phys.scanFree(phys.nextFrame, 1)
	if !ok {
		return 0, false
	}
	phys.setBit(f, true)
	phys.usableFrames--
	phys.nextFrame = f + 1
	return Pa_t(f) << PGSHIFT, true
}

// AllocateFrames returns n physically contiguous free frames, marking
// them all allocated. ok is false if no contiguous run of that length
// exists.
func (phys *Physmem_t) AllocateFrames(n int) (pa Pa_t, ok bool) {
	if n <= 0 {
		panic("AllocateFrames: n must be positive")
	}
	phys.Lock()
	defer phys.Unlock()
	f, ok := phys.scanFree(phys.nextFrame, n)
	if !ok {
		return 0, false
	}
	for i := uint64(0); i < uint64(n); i++ {
		phys.setBit(f+i, true)
	}
	phys.usableFrames -= uint64(n)
	phys.nextFrame = f + uint64(n)
	return Pa_t(f) << PGSHIFT, true
}

// scanFree finds a run of n consecutive clear bits, starting the search
// at hint and wrapping around once.
func (phys *Physmem_t) scanFree(hint uint64, n int) (uint64, bool) {
	total := phys.totalFrames
	for pass := 0; pass < 2; pass++ {
		run := 0
		var runStart uint64
		start := hint
		if pass == 1 {
			start = 0
		}
		for f := start; f < total; f++ {
			if phys.getBit(f) {
				run = 0
				continue
			}
			if run == 0 {
				runStart = f
			}
			run++
			if run == n {
				return runStart, true
			}
		}
	}
	return 0, false
}

// DeallocateFrame returns a previously allocated frame to the pool.
func (phys *Physmem_t) DeallocateFrame(pa Pa_t) {
	phys.Lock()
	defer phys.Unlock()
	f := frameOf(pa)
	if !phys.getBit(f) {
		panic("double free of physical frame")
	}
	phys.setBit(f, false)
	phys.usableFrames++
}

// Pgcount reports the number of free and total frames.
func (phys *Physmem_t) Pgcount() (free, total uint64) {
	phys.Lock()
	defer phys.Unlock()
	return phys.usableFrames, phys.totalFrames
}

// Refpg_new allocates a single zeroed page and returns its kernel mapping
// and physical address.
func (phys *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	pa, ok := phys.AllocateFrame()
	if !ok {
		return nil, 0, false
	}
	pg := Dmap(pa)
	for i := range pg {
		pg[i] = 0
	}
	return pg, pa, true
}

// Pmap_new allocates a new, zeroed page-table page.
func (phys *Physmem_t) Pmap_new() (*Pmap_t, Pa_t, bool) {
	pg, pa, ok := phys.Refpg_new()
	if !ok {
		return nil, 0, false
	}
	return pg2pmap(pg), pa, true
}
