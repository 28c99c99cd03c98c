// Package limits tracks system-wide admission limits enforced while
// creating processes, threads and TTYs, following biscuit's Syslimit_t
// pattern of one struct of atomically-adjustable counters checked at
// resource-creation time.
package limits

import (
	"sync/atomic"
)

// Sysatomic_t is a numeric limit that can be atomically given and taken.
type Sysatomic_t int64

func (s *Sysatomic_t) ptr() *int64 {
	return (*int64)(s)
}

// Given increases the limit by n, e.g. when a resource is freed.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64(s.ptr(), int64(n))
}

// Taken tries to decrement the limit by n, returning false without effect
// if that would drive it negative.
func (s *Sysatomic_t) Taken(n uint) bool {
	if atomic.AddInt64(s.ptr(), -int64(n)) >= 0 {
		return true
	}
	atomic.AddInt64(s.ptr(), int64(n))
	return false
}

// Syslimit_t holds the system-wide admission limits.
type Syslimit_t struct {
	// Procs bounds the number of live processes (including the kernel
	// process).
	Procs Sysatomic_t
	// ThreadsPerProc bounds the number of threads a single process may own.
	ThreadsPerProc int
	// TTYs bounds the number of virtual framebuffers the TTY compositor
	// maintains.
	TTYs int
	// UserHeapInitBytes is the initial size of a new user heap, 128 KiB
	// per spec.
	UserHeapInitBytes int
	// TimerHz is the target LAPIC periodic timer frequency.
	TimerHz uint32
	// CalibrationRounds is the number of HPET-timed rounds used to
	// calibrate the LAPIC timer.
	CalibrationRounds int
}

// Default returns the system's default resource limits.
func Default() *Syslimit_t {
	l := &Syslimit_t{
		ThreadsPerProc:    4096,
		TTYs:              6,
		UserHeapInitBytes: 128 * 1024,
		TimerHz:           200,
		CalibrationRounds: 100,
	}
	l.Procs = 1 << 16
	return l
}

// Syslimit holds the live, process-wide limits.
var Syslimit = Default()
