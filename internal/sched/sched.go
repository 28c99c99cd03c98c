// Package sched implements the per-CPU preemptive scheduler (C8): one
// Scheduler instance per LAPIC id, a single global ready list shared by
// every CPU, CFS-style vruntime accounting, and the one-shot
// load-balanced CPU placement that happens at thread registration and
// never again. Grounded 1:1 on the original kernel's
// task/scheduler.rs — the tick arithmetic, the load-balancing scan and
// the panic-on-starvation behavior all mirror schedule()/get_next()/
// add_thread() there.
//
// sched owns the global process and ready-list registries because the
// original's scheduler.rs does too (process.rs and thread.rs both call
// back into it for add_process/add_thread/KERNEL_PROCESS); see
// internal/proc's package comment for why the dependency direction had
// to be inverted for Go's import graph.
package sched

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"nox/internal/apic"
	"nox/internal/defs"
	"nox/internal/hashtable"
	"nox/internal/klog"
	"nox/internal/limits"
	"nox/internal/mem"
	"nox/internal/proc"
	"nox/internal/tinfo"
	"nox/internal/trap"
	"nox/internal/vm"
)

// tickNs is the wall-clock duration of one timer tick, derived from the
// same limits.Syslimit.TimerHz the LAPIC is calibrated against. Schedule
// debits exactly this much system time to the running thread's Accnt_t
// on every tick, whether or not it ends up switching away.
var tickNs = int64(1_000_000_000) / int64(limits.Syslimit.TimerHz)

// SchedulerInit is set once the boot CPU's scheduler is ready;
// internal/smp's AP bring-up spin-waits on this, after calibrating its
// own timer, before seeding its own Scheduler.
var SchedulerInit atomic.Bool

// KernelProcess is the unique, immortal kernel process every kernel
// thread belongs to.
var KernelProcess *proc.Process_t

var processes = hashtable.Mk(64) // defs.ProcessId -> *proc.Process_t

var (
	threadsMu sync.Mutex
	threads   []*proc.Thread_t // the global ready list, rotated by get_next
)

var (
	schedulersMu sync.Mutex
	schedulers   = map[uint32]*Scheduler{}
)

// cpuCount bounds how many CPUs thread placement balances across.
// internal/smp calls SetCpuCount once it has parsed the MADT; until
// then every thread lands on CPU 0.
var cpuCount int32 = 1

func CpuCount() int { return int(atomic.LoadInt32(&cpuCount)) }

// SetCpuCount is called once by internal/smp after ACPI/MADT parsing.
func SetCpuCount(n int) { atomic.StoreInt32(&cpuCount, int32(n)) }

// Bootstrap creates the kernel process and the calling (boot) CPU's
// Scheduler around its init thread, then wires the timer vector to
// TimerHandler. Must run once, on the BSP, before any timer interrupt
// is unmasked.
func Bootstrap(kernelPmap *mem.Pmap_t) (*proc.Process_t, defs.Err_t) {
	kernel, err := proc.NewProcess("kernel", defs.KernelHeap, kernelPmap)
	if err != defs.EOK {
		return nil, err
	}
	KernelProcess = kernel
	addProcess(kernel)

	init := proc.NewInitThread(kernel)
	addThread(init)

	lapicID := apic.GetLapicID()
	schedulersMu.Lock()
	schedulers[lapicID] = &Scheduler{current: init}
	schedulersMu.Unlock()

	trap.Register(trap.VecTimer, TimerHandler)
	SchedulerInit.Store(true)
	klog.Infof("scheduler initialized on cpu %d", lapicID)
	return kernel, defs.EOK
}

// BootstrapAP constructs the Scheduler for an AP that has just finished
// its own IDT/APIC bring-up, seeded with its own init thread.
func BootstrapAP() {
	init := proc.NewInitThread(KernelProcess)
	addThread(init)

	lapicID := apic.GetLapicID()
	schedulersMu.Lock()
	schedulers[lapicID] = &Scheduler{current: init}
	schedulersMu.Unlock()
}

// addProcess registers p in the global process map.
func addProcess(p *proc.Process_t) {
	processes.Set(uint64(p.Id), p)
}

// GetProcess looks up a process by id.
func GetProcess(pid defs.ProcessId) (*proc.Process_t, bool) {
	v, ok := processes.Get(uint64(pid))
	if !ok {
		return nil, false
	}
	return v.(*proc.Process_t), true
}

// addThread performs the original's one-shot load-balancing placement:
// count how many ready-list threads are currently assigned to each CPU,
// and pin t to whichever has the fewest. This runs exactly once, at
// registration; threads are never migrated afterwards.
func addThread(t *proc.Thread_t) {
	threadsMu.Lock()
	defer threadsMu.Unlock()

	n := CpuCount()
	minLoadCPU := t.CpuId
	minLoad := len(threads)
	for cpu := uint32(0); int(cpu) < n; cpu++ {
		if len(threads) == 0 {
			break
		}
		load := 0
		for _, th := range threads {
			if th.CpuId == cpu {
				load++
			}
		}
		if minLoad-load > 0 {
			minLoadCPU = cpu
			minLoad = load
		}
	}
	if minLoadCPU != t.CpuId {
		t.CpuId = minLoadCPU
	}
	threads = append(threads, t)
}

// NewKernelThread creates a thread running fn in the kernel process and
// admits it into the scheduler, matching Thread::new_kernel_thread.
func NewKernelThread(kernel *vm.Vm_t, fn uintptr) (*proc.Thread_t, defs.Err_t) {
	t, err := proc.NewKernelThread(KernelProcess, kernel, fn)
	if err != defs.EOK {
		return nil, err
	}
	addThread(t)
	return t, defs.EOK
}

// NewUserProcess clones the kernel page table, calls load to map the
// binary's loadable segments into it, creates the process's heap and
// its one user thread at the entry point load returns, and registers
// both. elfData is not read here: the parse and segment mapping happen
// inside load (for an ELF binary, a closure over elfload.LoadSegments).
func NewUserProcess(name string, elfData []byte, kernelPmap *mem.Pmap_t, load func(as *vm.Vm_t) (entry mem.Va_t, err defs.Err_t)) (*proc.Process_t, defs.Err_t) {
	p, err := proc.NewProcess(name, defs.UserHeap, kernelPmap)
	if err != defs.EOK {
		return nil, err
	}
	entry, err := load(p.PageTable)
	if err != defs.EOK {
		return nil, err
	}
	t, err := proc.NewUserThread(p, KernelProcess.PageTable, entry)
	if err != defs.EOK {
		return nil, err
	}
	addThread(t)
	addProcess(p)
	klog.Infof("user process %q id=%d entry=%#x", name, p.Id, entry)
	return p, defs.EOK
}

// Scheduler is one CPU's view of the ready list: which thread it is
// currently running.
type Scheduler struct {
	current *proc.Thread_t
}

// getNext rotates the global ready list looking for the first thread
// that is Ready, assigned to cpuID, and not the thread already running
// on this CPU. Every candidate is popped from the front and pushed to
// the back regardless of whether it matches, exactly like the
// original's get_next — this keeps the list fairly mixed across CPUs
// even though only one CPU's scan will pick any given entry.
func getNext(cpuID uint32, current *proc.Thread_t) *proc.Thread_t {
	threadsMu.Lock()
	defer threadsMu.Unlock()

	n := len(threads)
	for i := 0; i < n; i++ {
		t := threads[0]
		threads = append(threads[1:], t)
		if t.State() == defs.Ready && t.CpuId == cpuID && t.Id != current.Id {
			return t
		}
	}
	return nil
}

// Schedule is called with the address of the trap.Frame the timer
// interrupt just saved on the current thread's kernel stack. It always
// debits one tick of vruntime; if the running thread has exhausted its
// budget or terminated, it hands the CPU to the next Ready thread on
// this CPU, restoring that thread's own saved context address.
// Otherwise it hands back the same context, continuing the current
// thread uninterrupted.
func (s *Scheduler) Schedule(context uintptr) uintptr {
	last := s.current
	last.Context = context
	last.Fpu.Save()
	last.Vruntime--
	last.Accnt.Systadd(tickNs)

	cpuID := apic.GetLapicID()

	if last.Vruntime > 0 && last.State() != defs.Terminated {
		last.Fpu.Restore()
		tinfo.SetCurrent(int(cpuID), &last.Note)
		return context
	}

	next := getNext(cpuID, last)
	if next == nil {
		if last.State() == defs.Terminated {
			panic("sched: could not get the next thread to run, cpu is hungry")
		}
		last.Fpu.Restore()
		tinfo.SetCurrent(int(cpuID), &last.Note)
		return context
	}

	next.SetState(defs.Running)
	s.current = next

	if last.State() == defs.Running {
		last.Vruntime = last.Priority
		last.SetState(defs.Ready)
	}

	next.Fpu.Restore()
	tinfo.SetCurrent(int(cpuID), &next.Note)
	return next.Context
}

// TimerHandler is registered on trap.VecTimer; it looks up the calling
// CPU's Scheduler and runs one tick of Schedule against the frame the
// assembly trampoline just saved.
func TimerHandler(fr *trap.Frame) uintptr {
	lapicID := apic.GetLapicID()
	schedulersMu.Lock()
	s := schedulers[lapicID]
	schedulersMu.Unlock()
	if s == nil {
		return uintptr(unsafe.Pointer(fr))
	}
	return s.Schedule(uintptr(unsafe.Pointer(fr)))
}

// Exit terminates every thread of the process currently running on
// this CPU, clears its heap, and removes it from the global process
// map. The next tick observes the Terminated state on whichever of its
// threads is current and switches away; none of them ever runs again.
func Exit() {
	lapicID := apic.GetLapicID()
	schedulersMu.Lock()
	s := schedulers[lapicID]
	schedulersMu.Unlock()
	if s == nil {
		klog.Warnf("sched: exit() called with no scheduler on this cpu")
		return
	}

	current := s.current
	p := current.Process
	if p == nil {
		klog.Warnf("sched: exit() called on a thread with no owning process")
		return
	}

	p.EachThread(func(t *proc.Thread_t) {
		t.SetState(defs.Terminated)
		p.Accnt.Add(&t.Accnt)
	})
	tinfo.ClearCurrent(int(lapicID))
	p.Heap.Clear()
	processes.Del(uint64(p.Id))
	limits.Syslimit.Procs.Given(1)
}
