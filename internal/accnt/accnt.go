// Package accnt tracks per-thread CPU time, following biscuit's Accnt_t
// pattern of a small atomically-updated pair of nanosecond counters that
// the scheduler updates on every timer tick and context switch.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Accnt_t accumulates the CPU time consumed by a single thread. Userns and
// Sysns store nanoseconds; the embedded mutex lets Add take a consistent
// snapshot when folding a dying thread's usage into its process total.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds of user time.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds of system (kernel) time.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Now returns the current time in nanoseconds, for timestamping the
// start of a run that Finish later closes.
func Now() int64 {
	return time.Now().UnixNano()
}

// Finish adds the elapsed time since start to the system-time counter.
// internal/sched does not call it; the scheduler debits a fixed tick
// through Systadd instead.
func (a *Accnt_t) Finish(start int64) {
	a.Systadd(Now() - start)
}

// Add folds n's counters into a, taking a's lock. Used when a thread
// terminates and its usage is merged into the owning process's total.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += atomic.LoadInt64(&n.Userns)
	a.Sysns += atomic.LoadInt64(&n.Sysns)
	a.Unlock()
}

// Snapshot returns a consistent (Userns, Sysns) pair.
func (a *Accnt_t) Snapshot() (userns, sysns int64) {
	a.Lock()
	userns, sysns = a.Userns, a.Sysns
	a.Unlock()
	return
}
