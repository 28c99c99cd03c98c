// Package proc defines the process and thread records (C7): a process
// owns a cloned page table, a heap, a signal mailbox and an ordered
// list of threads; a thread owns a kernel stack, an FPU save area and
// the register context the scheduler switches between. Grounded on the
// original kernel's task/process.rs and task/thread.rs.
//
// proc has no dependency on internal/sched: the original's process.rs
// and thread.rs both call back into scheduler.rs (add_process,
// add_thread, KERNEL_PROCESS), which Rust's single-crate module system
// tolerates as a same-crate cycle but Go's import graph does not. Here
// the split runs the other way — internal/sched imports internal/proc
// and owns the global registries and the registration step, while proc
// owns only the data and the per-instance operations (wake-up,
// termination bookkeeping) that don't need a global view.
package proc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"nox/internal/accnt"
	"nox/internal/apic"
	"nox/internal/defs"
	"nox/internal/fpu"
	"nox/internal/kstack"
	"nox/internal/limits"
	"nox/internal/mem"
	"nox/internal/signal"
	"nox/internal/tinfo"
	"nox/internal/trap"
	"nox/internal/uheap"
	"nox/internal/ustr"
	"nox/internal/vm"
)

// Priority values for the three thread-creation paths, matching the
// original kernel's KERNEL_PRIORITY/USER_PRIORITY (the init thread's
// priority is reset to 1 immediately after creation).
const (
	KernelPriority = 10
	UserPriority   = 20
	InitPriority   = 1
)

const signalTypeCount = 64

var (
	nextProcessId uint64
	nextThreadId  uint64
)

func newProcessId() defs.ProcessId {
	return defs.ProcessId(atomic.AddUint64(&nextProcessId, 1) - 1)
}

func newThreadId() defs.ThreadId {
	return defs.ThreadId(atomic.AddUint64(&nextThreadId, 1) - 1)
}

// Process_t is one process: a private top-level page table, a heap, a
// signal mailbox, and the threads that execute in it.
type Process_t struct {
	Id        defs.ProcessId
	Name      ustr.Ustr
	PageTable *vm.Vm_t
	Heap      *uheap.Heap_t
	Signals   *signal.Manager_t
	Father    *Process_t // weak: never dereferenced once Father is gone from the global map

	// Accnt accumulates the CPU time of every thread this process has
	// ever owned: EachThread's caller folds a terminating thread's own
	// Accnt_t in here before dropping it, so the total survives past any
	// individual thread's lifetime.
	Accnt accnt.Accnt_t

	mu            sync.Mutex
	threads       []*Thread_t
	nextUserStack mem.Va_t
}

// NewProcess allocates a process whose page table is cloned from
// kernelPmap (the kernel half stays identically mapped in every
// process). Don't call this directly outside internal/sched — use
// sched.NewUserProcess or sched.Bootstrap, which also register
// the result in the global process map.
func NewProcess(name string, heapType defs.HeapType, kernelPmap *mem.Pmap_t) (*Process_t, defs.Err_t) {
	if !limits.Syslimit.Procs.Taken(1) {
		return nil, defs.ENOMEM
	}
	as, err := vm.NewAddressSpace(kernelPmap)
	if err != defs.EOK {
		limits.Syslimit.Procs.Given(1)
		return nil, err
	}
	p := &Process_t{
		Id:        newProcessId(),
		Name:      ustr.Mk(name),
		PageTable: as,
	}
	p.Heap = uheap.New(as, heapType)
	p.Signals = signal.New(signalTypeCount, p.wakeUp)
	if err := p.Heap.Init(); err != defs.EOK {
		return nil, err
	}
	return p, defs.EOK
}

// wakeUp marks every thread of the process Ready. Bound as the signal
// manager's wake-up callback at construction time, mirroring the
// original's create_wake_up_function.
func (p *Process_t) wakeUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		t.SetState(defs.Ready)
	}
}

// AddThread appends t to the process's thread list. Called once by each
// of the thread constructors below.
func (p *Process_t) AddThread(t *Thread_t) {
	p.mu.Lock()
	p.threads = append(p.threads, t)
	p.mu.Unlock()
}

// EachThread applies f to every thread currently owned by the process.
// Used by internal/sched's exit() to mark them all Terminated.
func (p *Process_t) EachThread(f func(*Thread_t)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.threads {
		f(t)
	}
}

// ThreadCount returns the number of threads currently owned by the
// process, used to decide whether it is eligible for teardown.
func (p *Process_t) ThreadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.threads)
}

// Thread_t is one schedulable unit of execution.
type Thread_t struct {
	Id       defs.ThreadId
	CpuId    uint32
	Priority int

	// Vruntime is the CFS-style tick budget remaining before the
	// scheduler considers switching this thread away; negative on
	// construction, matching the original's vruntime: -1 default.
	Vruntime int

	mu    sync.Mutex
	state defs.ThreadState

	KernelStack kstack.Stack_t
	// Context is the address of the trap.Frame at the top of
	// KernelStack from which this thread will next resume — the
	// scheduler's entire view of "where to jump back to".
	Context uintptr
	Fpu     fpu.State_t
	Process *Process_t // owning process; a Terminated thread stays on the ready list but is never selected again

	// Accnt tracks this thread's own CPU time; internal/sched debits it
	// one tick at a time on every Schedule call and folds it into
	// Process.Accnt when the thread terminates.
	Accnt accnt.Accnt_t
	// Note carries the kill/doom bookkeeping internal/sched installs as
	// this CPU's "current thread" note on every switch, and that a
	// future kill syscall would mark doomed.
	Note tinfo.Tnote_t
}

func (t *Thread_t) State() defs.ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Thread_t) SetState(s defs.ThreadState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func newThread(process *Process_t, priority int) *Thread_t {
	return &Thread_t{
		Id:       newThreadId(),
		CpuId:    apic.GetLapicID(),
		Priority: priority,
		Vruntime: -1,
		state:    defs.Ready,
		Process:  process,
	}
}

// buildContext carves a kernel stack for t and writes an initial
// trap.Frame at its top so the first schedule() that picks t resumes at
// entry with the given stack and segment selectors, general-purpose
// registers zeroed, and interrupts enabled (Rflags bit 1 is the
// reserved-set bit, bit 9 is IF). A zero stackTop means "resume on this
// same kernel stack" — the case for a kernel thread, which never
// leaves ring 0 and so never needs a separate user stack.
func buildContext(t *Thread_t, kernel *vm.Vm_t, entry, stackTop mem.Va_t, cs, ss uint64) defs.Err_t {
	ks, err := kstack.New(kernel)
	if err != defs.EOK {
		return err
	}
	t.KernelStack = ks
	if stackTop == 0 {
		stackTop = ks.EndAddress()
	}

	fr := &trap.Frame{
		Rip:    uint64(entry),
		Cs:     cs,
		Rflags: 0x202,
		Rsp:    uint64(stackTop),
		Ss:     ss,
	}
	frameAddr := ks.EndAddress() - mem.Va_t(unsafe.Sizeof(*fr))
	*(*trap.Frame)(unsafe.Pointer(uintptr(frameAddr))) = *fr
	t.Context = uintptr(frameAddr)
	return defs.EOK
}

// userStackRegionBase is the fixed virtual address every process's
// first user stack begins at — 8 TiB, comfortably clear of both the
// kernel-stack region (16 TiB) and the user heap (20 TiB). There is no
// ASLR in this kernel, so reusing the same address across processes is
// correct: each process has its own page table.
const userStackRegionBase mem.Va_t = 8 * 1024 * 1024 * 1024 * 1024

const userStackPages = 8 // 32 KiB

// allocUserStack maps a fresh user stack into p's own address space,
// advancing p's private bump pointer (with a one-page gap) so a process
// that spawns more than one user thread gets non-overlapping stacks.
func allocUserStack(p *Process_t) (mem.Va_t, defs.Err_t) {
	p.mu.Lock()
	if p.nextUserStack == 0 {
		p.nextUserStack = userStackRegionBase
	}
	base := p.nextUserStack
	p.nextUserStack += mem.Va_t(userStackPages*mem.PGSIZE) + mem.Va_t(mem.PGSIZE)
	p.mu.Unlock()

	p.PageTable.Lock_pmap()
	defer p.PageTable.Unlock_pmap()
	for i := 0; i < userStackPages; i++ {
		pa, ok := mem.Physmem.AllocateFrame()
		if !ok {
			return 0, defs.ENOMEM
		}
		va := base + mem.Va_t(i*mem.PGSIZE)
		if p.PageTable.MapTo(va, pa, mem.PTE_P|mem.PTE_W|mem.PTE_U) == vm.BlockedByHugePage {
			mem.Physmem.DeallocateFrame(pa)
			return 0, defs.ENOMEM
		}
	}
	return base + mem.Va_t(userStackPages*mem.PGSIZE), defs.EOK
}

// NewInitThread creates the per-CPU thread record that captures the
// idle boot context into which the first schedule() on this CPU
// returns. Its priority is reset to InitPriority and its state to
// Running immediately, matching the original's new_init_thread.
func NewInitThread(kernelProcess *Process_t) *Thread_t {
	t := newThread(kernelProcess, KernelPriority)
	t.state = defs.Running
	t.Priority = InitPriority
	kernelProcess.AddThread(t)
	return t
}

// NewKernelThread creates a thread that starts executing fn on its own
// kernel stack, with the kernel's page table and segment selectors.
func NewKernelThread(kernelProcess *Process_t, kernel *vm.Vm_t, fn uintptr) (*Thread_t, defs.Err_t) {
	t := newThread(kernelProcess, KernelPriority)
	if err := buildContext(t, kernel, mem.Va_t(fn), 0, trap.KernelCS, trap.KernelSS); err != defs.EOK {
		return nil, err
	}
	kernelProcess.AddThread(t)
	return t, defs.EOK
}

// NewUserThread creates a thread that starts executing at entryPoint in
// process's own address space, on a freshly mapped user stack, with
// user-mode segment selectors.
func NewUserThread(process *Process_t, kernel *vm.Vm_t, entryPoint mem.Va_t) (*Thread_t, defs.Err_t) {
	t := newThread(process, UserPriority)
	userStackTop, err := allocUserStack(process)
	if err != defs.EOK {
		return nil, err
	}
	if err := buildContext(t, kernel, entryPoint, userStackTop, trap.UserCS, trap.UserSS); err != defs.EOK {
		return nil, err
	}
	process.AddThread(t)
	return t, defs.EOK
}
