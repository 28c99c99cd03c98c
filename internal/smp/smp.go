// Package smp brings up the application processors (C6) and tracks
// per-CPU bookkeeping (LAPIC id, ring-0 stack pointer for the TSS).
// Grounded on the original kernel's arch/smp.rs: three atomic gates
// (HpetInit/SchedulerInit/StartSchedule) establish happens-before
// between the boot CPU and every AP, and ap_entry's exact wait/init/
// wait/init/wait/enable-interrupts/hlt-forever sequence is reproduced
// below in ApEntry.
//
// One piece of arch/smp.rs has no portable Go equivalent: writing a
// function pointer into a Limine SmpRequest response's goto_address
// field to make a second physical core jump to machine code at that
// address. Go has no mechanism to start a raw CPU core — that act is
// inherently bootloader/assembly territory, not something any Go
// library in the examples corpus touches. InitAPs instead launches
// one goroutine per discovered LAPIC id running ApEntry, which is an
// honest simulation of "another core starts executing" rather than a
// claim that this reproduces the real hardware mechanism; the
// synchronization protocol around it (the three atomic gates, the
// wait order) is reproduced exactly and is what the rest of the kernel
// actually depends on for correctness.
package smp

import (
	"sync"
	"sync/atomic"

	"nox/internal/apic"
	"nox/internal/cpu"
	"nox/internal/klog"
	"nox/internal/sched"
	"nox/internal/trap"
)

// The three bring-up gates, checked with SeqCst-equivalent Go atomics.
// SchedulerInit lives in internal/sched (it is set by sched.Bootstrap);
// HpetInit and StartSchedule belong here since nothing outside smp/boot
// sets them.
var (
	HpetInit      atomic.Bool
	StartSchedule atomic.Bool
)

// CpuInfo is the per-CPU record smp owns.
type CpuInfo struct {
	LapicID  uint32
	ring0Rsp uintptr
}

// SetRing0Rsp records rsp as this CPU's ring-0 stack pointer. The value
// is kept in CpuInfo only; it is not written to a hardware TSS, and
// internal/sched does not call SetRing0Rsp on a thread switch.
func (c *CpuInfo) SetRing0Rsp(rsp uintptr) {
	atomic.StoreUintptr(&c.ring0Rsp, rsp)
}

func (c *CpuInfo) Ring0Rsp() uintptr {
	return atomic.LoadUintptr(&c.ring0Rsp)
}

var (
	mu        sync.Mutex
	cpus      = map[uint32]*CpuInfo{}
	bspLapicID uint32
)

// Descriptor is the subset of a bootloader-reported CPU that smp needs:
// its LAPIC id. internal/boot builds these from the Limine SMP
// response.
type Descriptor struct {
	LapicID uint32
}

// Init registers the boot CPU and must run before InitAPs.
func Init(bspID uint32) {
	mu.Lock()
	bspLapicID = bspID
	cpus[bspID] = &CpuInfo{LapicID: bspID}
	mu.Unlock()
}

// BspLapicID returns the LAPIC id Init recorded for the boot CPU.
func BspLapicID() uint32 {
	mu.Lock()
	defer mu.Unlock()
	return bspLapicID
}

// Count returns the number of CPUs known to smp (boot CPU plus every
// AP registered by InitAPs).
func Count() int {
	mu.Lock()
	defer mu.Unlock()
	return len(cpus)
}

// Get returns the CpuInfo for lapicID, or nil if unknown.
func Get(lapicID uint32) *CpuInfo {
	mu.Lock()
	defer mu.Unlock()
	return cpus[lapicID]
}

// InitAPs registers every non-boot CPU the bootloader reported and
// starts its bring-up sequence. sched.SetCpuCount is updated so
// internal/sched's load-balancing scan knows the real CPU population.
func InitAPs(descs []Descriptor) {
	mu.Lock()
	for _, d := range descs {
		if d.LapicID == bspLapicID {
			continue
		}
		cpus[d.LapicID] = &CpuInfo{LapicID: d.LapicID}
	}
	n := len(cpus)
	mu.Unlock()

	sched.SetCpuCount(n)

	for _, d := range descs {
		if d.LapicID == bspLapicID {
			continue
		}
		go ApEntry(d.LapicID)
	}
}

// ApEntry is the bring-up sequence every AP (real or, here, simulated
// by a goroutine) runs: load the shared IDT, wait for the HPET to be
// calibrated, bring up its own LAPIC timer, wait for the scheduler to
// exist, seed its own Scheduler, wait for the global start flag, then
// run forever — from this point on the AP is driven entirely by its
// own timer interrupts.
func ApEntry(lapicID uint32) {
	trap.LoadIDT()

	for !HpetInit.Load() {
	}

	apic.CalibrateTimer(trap.VecTimer)
	apic.EnableTimer()

	for !sched.SchedulerInit.Load() {
	}

	sched.BootstrapAP()
	klog.Infof("cpu %d scheduler ready", lapicID)

	for !StartSchedule.Load() {
	}

	klog.Infof("cpu %d entering run loop", lapicID)
	cpu.EnableInterrupts()
	for {
		cpu.Halt()
	}
}
