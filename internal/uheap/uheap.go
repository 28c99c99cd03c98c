// Package uheap implements the per-process user heap: a first-fit arena
// anchored at a fixed virtual address, grown by mapping fresh physical
// frames (sbrk) when the arena cannot satisfy a request. It is grounded
// on the original kernel's ProcessHeap (memory/user_heap.rs), which
// layers a first-fit allocator over a span that starts at 128 KiB and
// doubles the requested size whenever an allocation would overflow it.
package uheap

import (
	"sync"

	"nox/internal/defs"
	"nox/internal/limits"
	"nox/internal/mem"
	"nox/internal/util"
	"nox/internal/vm"
)

// HeapStart is the fixed virtual address every user process's heap
// begins at: 20 TiB, matching the original kernel's HEAP_START and
// leaving the 18-20 TiB range as a dedicated user-space allocation zone.
const HeapStart mem.Va_t = 20 * 1024 * 1024 * 1024 * 1024

// block_t is one run of free bytes within the arena, expressed as an
// offset from HeapStart.
type block_t struct {
	off  int
	size int
}

// Heap_t is one process's user heap. A kernel-mode process's Heap_t
// maps nothing and Allocate/Deallocate on it always panic, matching the
// original kernel's refusal to let kernel code use a process heap.
type Heap_t struct {
	mu        sync.Mutex
	heapType  defs.HeapType
	as        *vm.Vm_t
	size      int // bytes currently mapped, starting at HeapStart
	usedBytes int
	free      []block_t // sorted by offset, no two entries adjacent
}

// New creates a heap of the given type bound to address space as.
func New(as *vm.Vm_t, heapType defs.HeapType) *Heap_t {
	return &Heap_t{as: as, heapType: heapType}
}

// Init maps the heap's initial span. Kernel-mode heaps start and remain
// empty.
func (h *Heap_t) Init() defs.Err_t {
	if h.heapType != defs.UserHeap {
		return defs.EOK
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.growLocked(limits.Syslimit.UserHeapInitBytes)
}

// growLocked maps nbytes worth of additional frames onto the end of the
// arena and adds them as one free block.
func (h *Heap_t) growLocked(nbytes int) defs.Err_t {
	pages := util.Roundup(nbytes, mem.PGSIZE) / mem.PGSIZE
	base := h.size
	for i := 0; i < pages; i++ {
		pa, ok := mem.Physmem.AllocateFrame()
		if !ok {
			return defs.ENOMEM
		}
		va := HeapStart + mem.Va_t(h.size)
		h.as.Lock_pmap()
		outcome := h.as.MapTo(va, pa, mem.PTE_P|mem.PTE_W|mem.PTE_U)
		h.as.Unlock_pmap()
		if outcome == vm.BlockedByHugePage {
			mem.Physmem.DeallocateFrame(pa)
			return defs.ENOMEM
		}
		h.size += mem.PGSIZE
	}
	h.insertFreeLocked(base, h.size-base)
	return defs.EOK
}

// Allocate reserves size bytes from the arena using first fit, growing
// the arena (doubling the request, per the original kernel) if no free
// block is large enough.
func (h *Heap_t) Allocate(size int) (mem.Va_t, defs.Err_t) {
	if h.heapType != defs.UserHeap {
		panic("kernel-mode process has no user heap")
	}
	if size <= 0 {
		panic("uheap: non-positive allocation size")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, b := range h.free {
		if b.size >= size {
			h.takeLocked(i, size)
			h.usedBytes += size
			return HeapStart + mem.Va_t(b.off), defs.EOK
		}
	}
	if err := h.growLocked(size * 2); err != defs.EOK {
		return 0, err
	}
	for i, b := range h.free {
		if b.size >= size {
			h.takeLocked(i, size)
			h.usedBytes += size
			return HeapStart + mem.Va_t(b.off), defs.EOK
		}
	}
	return 0, defs.ENOMEM
}

// takeLocked removes size bytes from the front of free block i, shrinking
// or deleting it.
func (h *Heap_t) takeLocked(i, size int) {
	b := h.free[i]
	if b.size == size {
		h.free = append(h.free[:i], h.free[i+1:]...)
		return
	}
	h.free[i] = block_t{off: b.off + size, size: b.size - size}
}

// Deallocate returns a previously allocated range to the free list,
// coalescing it with adjacent free blocks.
func (h *Heap_t) Deallocate(va mem.Va_t, size int) {
	if h.heapType != defs.UserHeap {
		panic("kernel-mode process has no user heap")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	off := int(va - HeapStart)
	h.usedBytes -= size
	h.insertFreeLocked(off, size)
}

// insertFreeLocked inserts a free block in offset order and merges it
// with any free blocks it touches.
func (h *Heap_t) insertFreeLocked(off, size int) {
	nb := block_t{off: off, size: size}
	i := 0
	for i < len(h.free) && h.free[i].off < nb.off {
		i++
	}
	h.free = append(h.free, block_t{})
	copy(h.free[i+1:], h.free[i:])
	h.free[i] = nb

	if i+1 < len(h.free) && h.free[i].off+h.free[i].size == h.free[i+1].off {
		h.free[i].size += h.free[i+1].size
		h.free = append(h.free[:i+1], h.free[i+2:]...)
	}
	if i > 0 && h.free[i-1].off+h.free[i-1].size == h.free[i].off {
		h.free[i-1].size += h.free[i].size
		h.free = append(h.free[:i], h.free[i+1:]...)
	}
}

// Clear unmaps and frees every frame the heap owns and resets it to
// empty, called when the owning process exits.
func (h *Heap_t) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	pages := h.size / mem.PGSIZE
	h.as.Lock_pmap()
	for i := 0; i < pages; i++ {
		va := HeapStart + mem.Va_t(i*mem.PGSIZE)
		if pa, ok := h.as.Translate(va); ok {
			h.as.Unmap(va)
			mem.Physmem.DeallocateFrame(pa)
		}
	}
	h.as.Unlock_pmap()
	h.size = 0
	h.usedBytes = 0
	h.free = nil
}

// Usage returns the bytes currently mapped and the bytes of that span
// still handed out to the process.
func (h *Heap_t) Usage() (mapped, used int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size, h.usedBytes
}
