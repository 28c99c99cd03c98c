// Package vm implements each process's page tables: map_to/read/write
// byte addressing across address spaces, and cloning the kernel's top
// levels into a freshly created process. It follows biscuit's Vm_t
// naming and per-address-space locking convention (Lock_pmap/
// Unlock_pmap/Lockassert_pmap) but replaces biscuit's syscall-era
// mmap/COW/vmregion machinery — built for a filesystem this kernel does
// not have — with the page-table clone and byte-copy operations the
// original kernel's GeneralPageTable actually performs.
package vm

import (
	"sync"
	"unsafe"

	"nox/internal/defs"
	"nox/internal/mem"
	"nox/internal/util"
)

// readCR3 is implemented in cr3_amd64.s.
func readCR3() uint64

// invlpg is implemented in invlpg_amd64.s.
func invlpg(va uintptr)

// CurrentPmap returns the PML4 the CPU is running on right now — the
// one the bootloader installed — as a *mem.Pmap_t reached through the
// direct map. Called exactly once, at boot, to seed the kernel
// process's page table before any other address space is cloned from
// it.
func CurrentPmap() *mem.Pmap_t {
	pa := mem.Pa_t(readCR3()) &^ mem.PGOFFSET
	return (*mem.Pmap_t)(unsafe.Pointer(mem.Dmap(pa)))
}

// Vm_t is one process's address space: a PML4 plus the lock serializing
// all modifications to it.
type Vm_t struct {
	sync.Mutex
	Pmap   *mem.Pmap_t
	P_pmap mem.Pa_t

	pgfltaken bool
}

// Lock_pmap acquires the address-space lock and marks that page-table
// manipulation is in progress, so Lockassert_pmap can catch a caller that
// forgot to take it.
func (as *Vm_t) Lock_pmap() {
	as.Lock()
	as.pgfltaken = true
}

// Unlock_pmap releases the address-space lock.
func (as *Vm_t) Unlock_pmap() {
	as.pgfltaken = false
	as.Unlock()
}

// Lockassert_pmap panics if the address-space lock is not held.
func (as *Vm_t) Lockassert_pmap() {
	if !as.pgfltaken {
		panic("pmap lock must be held")
	}
}

// levelIndex extracts the 9-bit index for page-table level lv (4 down to
// 1) out of a virtual address.
func levelIndex(va mem.Va_t, lv uint) uint {
	return uint(va>>(12+9*(lv-1))) & 0x1ff
}

// NewAddressSpace clones the kernel's page table into a fresh PML4 for a
// new process. Levels 4 (PML4), 3 (PDPT) and 2 (PD) are deep-copied: a
// new physical frame is allocated for each and its entries are copied
// one by one, recursing into present non-huge children. Level-1 page
// tables and any huge-page entry are treated as leaves and shared
// directly — the copied entry points at the very same physical frame as
// the kernel's table, so a mapping later added to or removed from a
// shared level-1 table is seen by both address spaces.
func NewAddressSpace(kernelPmap *mem.Pmap_t) (*Vm_t, defs.Err_t) {
	newPmap, newPa, ok := cloneLevel(kernelPmap, 4)
	if !ok {
		return nil, defs.ENOMEM
	}
	return &Vm_t{Pmap: newPmap, P_pmap: newPa}, defs.EOK
}

func cloneLevel(table *mem.Pmap_t, lv uint) (*mem.Pmap_t, mem.Pa_t, bool) {
	newTable, newPa, ok := mem.Physmem.Pmap_new()
	if !ok {
		return nil, 0, false
	}
	for i, entry := range table {
		if entry&mem.PTE_P == 0 {
			newTable[i] = 0
			continue
		}
		if lv == 2 || entry&mem.PTE_PS != 0 {
			// level-1 table or huge page: share it by reference.
			newTable[i] = entry
			continue
		}
		child := (*mem.Pmap_t)(unsafe.Pointer(mem.Dmap(entry & mem.PTE_ADDR)))
		clonedChild, clonedPa, ok := cloneLevel(child, lv-1)
		if !ok {
			return nil, 0, false
		}
		_ = clonedChild
		newTable[i] = clonedPa | (entry &^ mem.PTE_ADDR)
	}
	return newTable, newPa, true
}

// walk result codes for MapTo, mirroring the original kernel's
// map_to_with_table_flags resilience: a slot already occupied by a
// mapping is simply replaced, a slot occupied by a huge page is a no-op,
// and running out of physical frames for an intermediate table panics
// (there is no recovery path for an out-of-memory kernel).
type MapOutcome int

const (
	Mapped MapOutcome = iota
	Remapped
	BlockedByHugePage
)

// MapTo installs a single 4 KiB mapping from va to pa with the given
// page-table entry flags, allocating any missing intermediate tables.
// Every successful install flushes va's TLB entry on this CPU, matching
// the original kernel's map_to_with_table_flags_general, which calls
// .flush() on every success path including the replace-an-existing-
// mapping case — a stale TLB entry left behind there would otherwise be
// observable on any other CPU sharing this address space.
func (as *Vm_t) MapTo(va mem.Va_t, pa mem.Pa_t, flags mem.Pa_t) MapOutcome {
	as.Lockassert_pmap()
	table := as.Pmap
	for lv := uint(4); lv > 1; lv-- {
		idx := levelIndex(va, lv)
		entry := table[idx]
		if entry&mem.PTE_PS != 0 {
			return BlockedByHugePage
		}
		if entry&mem.PTE_P == 0 {
			_, childPa, ok := mem.Physmem.Pmap_new()
			if !ok {
				panic("out of physical memory for page table")
			}
			table[idx] = childPa | mem.PTE_P | mem.PTE_W | mem.PTE_U
			entry = table[idx]
		}
		table = (*mem.Pmap_t)(unsafe.Pointer(mem.Dmap(entry & mem.PTE_ADDR)))
	}
	idx := levelIndex(va, 1)
	outcome := Mapped
	if table[idx]&mem.PTE_P != 0 {
		outcome = Remapped
	}
	table[idx] = pa | flags | mem.PTE_P
	invlpg(uintptr(va))
	return outcome
}

// Unmap clears the 4 KiB mapping at va, if any, returning whether a
// mapping was actually present.
func (as *Vm_t) Unmap(va mem.Va_t) bool {
	as.Lockassert_pmap()
	pte := as.walk(va)
	if pte == nil || *pte&mem.PTE_P == 0 {
		return false
	}
	*pte = 0
	invlpg(uintptr(va))
	return true
}

// Translate resolves va to its mapped physical address, if present.
func (as *Vm_t) Translate(va mem.Va_t) (mem.Pa_t, bool) {
	as.Lockassert_pmap()
	pte := as.walk(va)
	if pte == nil || *pte&mem.PTE_P == 0 {
		return 0, false
	}
	return (*pte & mem.PTE_ADDR) | (mem.Pa_t(va) & mem.PGOFFSET), true
}

// walk returns a pointer to the level-1 PTE for va, or nil if any
// intermediate table is missing or is a huge page.
func (as *Vm_t) walk(va mem.Va_t) *mem.Pa_t {
	table := as.Pmap
	for lv := uint(4); lv > 1; lv-- {
		idx := levelIndex(va, lv)
		entry := table[idx]
		if entry&mem.PTE_P == 0 || entry&mem.PTE_PS != 0 {
			return nil
		}
		table = (*mem.Pmap_t)(unsafe.Pointer(mem.Dmap(entry & mem.PTE_ADDR)))
	}
	return &table[levelIndex(va, 1)]
}

// Read copies n bytes starting at the user virtual address va in this
// address space into a freshly allocated slice, walking this process's
// page tables one page at a time and reading through the direct map —
// the same cross-address-space technique the original kernel's
// GeneralPageTable::read uses instead of temporarily switching cr3.
func (as *Vm_t) Read(va mem.Va_t, n int) ([]uint8, defs.Err_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	out := make([]uint8, 0, n)
	for len(out) < n {
		pa, ok := as.Translate(va)
		if !ok {
			return nil, defs.EFAULT
		}
		pg := mem.Dmap8(pa)
		need := util.Min(n-len(out), len(pg))
		out = append(out, pg[:need]...)
		va += mem.Va_t(need)
	}
	return out, defs.EOK
}

// Write copies src into this address space starting at va, crossing
// page boundaries as needed.
func (as *Vm_t) Write(va mem.Va_t, src []uint8) defs.Err_t {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	for len(src) > 0 {
		pa, ok := as.Translate(va)
		if !ok {
			return defs.EFAULT
		}
		dst := mem.Dmap8(pa)
		n := copy(dst, src)
		src = src[n:]
		va += mem.Va_t(n)
	}
	return defs.EOK
}

// Uvmfree tears down every mapping in [userLow, userHigh) of this address
// space and frees each mapped frame. Frames are not reference-counted,
// so a frame in that range mapped through a level-1 table shared with
// the kernel is unmapped and freed as well.
func (as *Vm_t) Uvmfree(userLow, userHigh mem.Va_t) {
	as.Lock_pmap()
	defer as.Unlock_pmap()
	for va := userLow; va < userHigh; va += mem.Va_t(mem.PGSIZE) {
		pte := as.walk(va)
		if pte == nil || *pte&mem.PTE_P == 0 {
			continue
		}
		pa := *pte & mem.PTE_ADDR
		*pte = 0
		mem.Physmem.DeallocateFrame(pa)
	}
}
