// Package tinfo tracks auxiliary per-thread kill/doom bookkeeping and the
// per-CPU "current thread" pointer the scheduler installs on every switch,
// following biscuit's Tnote_t/Threadinfo_t pattern. Biscuit stashes the
// current note in a per-goroutine runtime field because its threads are
// backed by real goroutines; this kernel instead keeps one slot per CPU,
// written only on that CPU, by its timer-interrupt handler or by
// sched.Exit clearing it.
package tinfo

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"nox/internal/defs"
)

// Tnote_t stores the kill/termination state of a single thread. The
// scheduler installs a thread's note as the CPU's current one on every
// tick; it does not consult Doomed when choosing the next thread.
type Tnote_t struct {
	State    defs.ThreadState
	Killed   bool
	Isdoomed bool

	// mu guards Killed, Isdoomed and Killnaps below; a leaf lock.
	mu sync.Mutex
	Killnaps struct {
		Killch chan bool
		Cond   *sync.Cond
		Kerr   defs.Err_t
	}
}

// Doomed reports whether the thread has been marked to die at its next
// preemption point.
func (t *Tnote_t) Doomed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Isdoomed
}

// Doom marks the thread as doomed.
func (t *Tnote_t) Doom() {
	t.mu.Lock()
	t.Isdoomed = true
	t.mu.Unlock()
}

// Threadinfo_t tracks the notes for every live thread, keyed by ThreadId.
type Threadinfo_t struct {
	sync.Mutex
	Notes map[defs.ThreadId]*Tnote_t
}

// Init prepares an empty thread-info map.
func (t *Threadinfo_t) Init() {
	t.Notes = make(map[defs.ThreadId]*Tnote_t)
}

// current holds one *Tnote_t slot per CPU, indexed by CPU number. Only the
// owning CPU ever writes its own slot, from inside the timer-interrupt
// dispatch path or from sched.Exit, so reads from that same CPU never race; a diagnostic
// reading a foreign CPU's slot uses LoadPointer to avoid a torn read.
var current [256]unsafe.Pointer

// Current returns the thread note installed for the given CPU, or nil if
// that CPU is idle.
func Current(cpu int) *Tnote_t {
	return (*Tnote_t)(atomic.LoadPointer(&current[cpu]))
}

// SetCurrent installs t as the running thread note for cpu.
func SetCurrent(cpu int, t *Tnote_t) {
	atomic.StorePointer(&current[cpu], unsafe.Pointer(t))
}

// ClearCurrent marks cpu as idle.
func ClearCurrent(cpu int) {
	atomic.StorePointer(&current[cpu], nil)
}
