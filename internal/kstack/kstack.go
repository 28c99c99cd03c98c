// Package kstack carves fixed-size kernel stacks out of a dedicated
// virtual address range (starting at 16 TiB, in the lower half) and maps
// them into the kernel's own address space. A process's address space
// shares the kernel's level-1 page tables, so it sees a stack mapped
// into a level-1 table that existed when it was cloned; a stack that
// needed a new level-1 table after the clone is absent from it.
// Grounded on the original kernel's KernelStack, which does
// the same bump allocation over a reserved region rather than a
// general-purpose VMA.
package kstack

import (
	"sync"

	"nox/internal/defs"
	"nox/internal/mem"
	"nox/internal/vm"
)

const (
	// StackPages is the number of 4 KiB frames backing one kernel stack.
	StackPages = 4
	// StackSize is the usable size of one kernel stack, in bytes.
	StackSize = StackPages * mem.PGSIZE

	// regionBase sits below the 20 TiB user-heap range and well above
	// any identity-mapped low memory, leaving room to grow without
	// colliding with either.
	regionBase mem.Va_t = 16 * 1024 * 1024 * 1024 * 1024
)

var (
	mu   sync.Mutex
	next = regionBase
)

// Stack_t is one allocated kernel stack.
type Stack_t struct {
	Base mem.Va_t
	Size int
}

// EndAddress returns the stack's initial top-of-stack address (stacks
// grow down from here).
func (s Stack_t) EndAddress() mem.Va_t {
	return s.Base + mem.Va_t(s.Size)
}

// New reserves the next slot in the kernel-stack region — leaving one
// unmapped guard page after it to turn an overflow into a page fault
// instead of silent corruption — and maps StackPages frames into
// kernel. Address spaces already cloned from kernel see the new mapping
// only where it lands in a level-1 table they share.
func New(kernel *vm.Vm_t) (Stack_t, defs.Err_t) {
	mu.Lock()
	base := next
	next += mem.Va_t(StackSize) + mem.Va_t(mem.PGSIZE)
	mu.Unlock()

	kernel.Lock_pmap()
	defer kernel.Unlock_pmap()
	for i := 0; i < StackPages; i++ {
		pa, ok := mem.Physmem.AllocateFrame()
		if !ok {
			return Stack_t{}, defs.ENOMEM
		}
		va := base + mem.Va_t(i*mem.PGSIZE)
		if kernel.MapTo(va, pa, mem.PTE_P|mem.PTE_W) == vm.BlockedByHugePage {
			mem.Physmem.DeallocateFrame(pa)
			return Stack_t{}, defs.ENOMEM
		}
	}
	return Stack_t{Base: base, Size: StackSize}, defs.EOK
}
