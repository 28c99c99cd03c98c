// Package apic programs the local APIC and IO-APIC, masks off the
// legacy 8259 PICs, and calibrates the LAPIC periodic timer against the
// HPET, following the original kernel's arch/apic.rs init/
// calibrate_timer sequence. Port I/O (PIC masking) and LAPIC register
// access are implemented the way biscuit's apic.go reads/writes its
// MMIO window: as a slice over the direct-mapped physical page.
package apic

import (
	"unsafe"

	"nox/internal/hpet"
	"nox/internal/intvec"
	"nox/internal/limits"
	"nox/internal/mem"
	"nox/internal/stats"
)

const (
	timerFrequencyHz        = 200
	timerCalibrationRounds  = 100
	ioapicInterruptBase     = 32
)

// Local APIC register offsets (xAPIC MMIO, 16-byte aligned per register).
const (
	lapicID           = 0x020
	lapicEOI          = 0x0b0
	lapicSpurious     = 0x0f0
	lapicLvtTimer     = 0x320
	lapicLvtError     = 0x370
	lapicTimerInitCnt = 0x380
	lapicTimerCurCnt  = 0x390
	lapicTimerDivide  = 0x3e0

	lvtTimerPeriodic = 1 << 17
	lvtMasked        = 1 << 16
)

type lapicRegs struct {
	base unsafe.Pointer
}

var lapic lapicRegs

func (l *lapicRegs) reg(off uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(uintptr(l.base) + off))
}

func (l *lapicRegs) read(off uintptr) uint32  { return *l.reg(off) }
func (l *lapicRegs) write(off uintptr, v uint32) { *l.reg(off) = v }

// Init maps the local APIC and IO-APIC MMIO windows, disables the
// legacy PICs, enables the spurious-interrupt vector, and programs the
// IO-APIC redirection entries for the keyboard (IRQ1) and mouse
// (IRQ12) lines. The vector numbers are supplied by the caller
// (cmd/kernel's boot sequence, which also registers their handlers
// with internal/trap) so this package never needs to import the
// vector-number constants itself.
func Init(localApicPhys, ioApicPhys mem.Pa_t, spuriousVec, errorVec, keyboardVec, mouseVec int) {
	lapic.base = unsafe.Pointer(mem.Dmap(localApicPhys))
	disablePIC()

	lapic.write(lapicSpurious, uint32(spuriousVec)|0x100)
	lapic.write(lapicLvtError, uint32(errorVec))

	ioapic.base = unsafe.Pointer(mem.Dmap(ioApicPhys))
	ioapicAddEntry(1, keyboardVec)
	ioapicAddEntry(12, mouseVec)
}

// GetLapicID returns the local APIC ID of the executing CPU.
func GetLapicID() uint32 {
	return lapic.read(lapicID) >> 24
}

// EndOfInterrupt signals completion of the current interrupt to the
// local APIC. Called once by internal/trap's common dispatch path after
// every IRQ-class handler returns.
func EndOfInterrupt() {
	lapic.write(lapicEOI, 0)
}

// CalibrateTimer busy-waits limits.Syslimit.CalibrationRounds
// one-millisecond HPET intervals, averaging how far the LAPIC's one-shot
// counter decremented in each, then switches the timer to periodic mode
// at limits.Syslimit.TimerHz.
func CalibrateTimer(timerVec int) {
	rounds := limits.Syslimit.CalibrationRounds
	msTicks := hpet.TicksPerMs()
	var total uint64
	for i := 0; i < rounds; i++ {
		next := hpet.GetCounter() + msTicks
		lapic.write(lapicTimerInitCnt, 0xffffffff)
		for hpet.GetCounter() < next {
		}
		total += 0xffffffff - uint64(lapic.read(lapicTimerCurCnt))
	}
	perMs := total / uint64(rounds)

	lapic.write(lapicLvtTimer, uint32(timerVec)|lvtTimerPeriodic)
	lapic.write(lapicTimerInitCnt, uint32(perMs*1000/uint64(limits.Syslimit.TimerHz)))
}

// EnableTimer unmasks the timer LVT entry. Separated from
// CalibrateTimer so an AP can wait for HPET bring-up before arming its
// own timer, matching the original kernel's ap_entry ordering.
func EnableTimer() {
	lapic.write(lapicLvtTimer, lapic.read(lapicLvtTimer)&^lvtMasked)
}

// --- IO-APIC ---

type ioapicRegs struct {
	base unsafe.Pointer
}

var ioapic ioapicRegs

const (
	ioregsel = 0x00
	iowin    = 0x10
	ioredtbl = 0x10
)

func (io *ioapicRegs) write(reg uint32, v uint32) {
	*(*uint32)(unsafe.Pointer(uintptr(io.base) + ioregsel)) = reg
	*(*uint32)(unsafe.Pointer(uintptr(io.base) + iowin)) = v
}

func (io *ioapicRegs) read(reg uint32) uint32 {
	*(*uint32)(unsafe.Pointer(uintptr(io.base) + ioregsel)) = reg
	return *(*uint32)(unsafe.Pointer(uintptr(io.base) + iowin))
}

func ioapicAddEntry(irq uint8, vector int) {
	low := uint32(vector)
	high := GetLapicID() << 24
	io := &ioapic
	io.write(ioredtbl+uint32(irq)*2, low)
	io.write(ioredtbl+uint32(irq)*2+1, high)
}

// MaskIRQ masks the given IO-APIC redirection entry, used before
// unregistering a driver's interrupt vector (internal/intvec.Free).
func MaskIRQ(irq uint8) {
	e := ioapic.read(ioredtbl + uint32(irq)*2)
	ioapic.write(ioredtbl+uint32(irq)*2, e|1<<16)
}

// UnmaskIRQ clears the mask bit on the given IO-APIC redirection entry.
func UnmaskIRQ(irq uint8) {
	e := ioapic.read(ioredtbl + uint32(irq)*2)
	ioapic.write(ioredtbl+uint32(irq)*2, e&^(1<<16))
}

func disablePIC() {
	outb(0x21, 0xff)
	outb(0xa1, 0xff)
}

func outb(port uint16, val uint8)
func inb(port uint16) uint8

// AllocVector hands the caller an interrupt vector from the dynamic
// pool and wires it into the IO-APIC at irq, returning the vector so
// the caller can Register a handler with internal/trap.
func AllocVector(irq uint8) intvec.Vec_t {
	v := intvec.Alloc()
	ioapicAddEntry(irq, int(v))
	stats.RecordIrq(int(v))
	return v
}
