// Package trap owns the IDT and the generic vector-to-handler dispatch
// table, following biscuit's trapstub/INTERRUPTS_TABLE pattern: a single
// assembly entry sequence per vector class that saves the machine state,
// calls into Go, and restores whatever stack pointer Go decides the CPU
// should resume on. That last part is what lets the timer vector double
// as the scheduler's only language-independent primitive: its handler
// returns a different thread's stack instead of the interrupted one.
package trap

import (
	"fmt"
	"sync"
	"unsafe"

	"nox/internal/apic"
	"nox/internal/caller"
)

// Vector numbers for the fixed, statically-registered interrupts. Vectors
// 0-31 are CPU exceptions; everything from FirstDynamicVector up is
// handed out by internal/intvec to drivers registered at runtime.
const (
	VecDivideError   = 0
	VecDebug         = 1
	VecNMI           = 2
	VecBreakpoint    = 3
	VecOverflow      = 4
	VecBoundRange    = 5
	VecInvalidOpcode = 6
	VecDeviceNA      = 7
	VecDoubleFault   = 8
	VecSegmentNP     = 11
	VecStackFault    = 12
	VecGPFault       = 13
	VecPageFault     = 14

	VecTimer         = 32
	VecApicError     = 33
	VecApicSpurious  = 34
	VecKeyboard      = 35
	VecMouse         = 36
	VecIPIReschedule = 37
	VecIPIHalt       = 38

	FirstDynamicVector = 56
)

// Frame mirrors the layout the assembly entry stub pushes onto the
// interrupt stack, in the reverse of push order: general-purpose
// registers, then the vector number and the hardware-or-zero error code,
// then the CPU-pushed iretq frame.
type Frame struct {
	R15, R14, R13, R12, R11, R10, R9, R8 uint64
	Rbp, Rdi, Rsi, Rdx, Rcx, Rbx, Rax    uint64

	Vector    uint64
	ErrorCode uint64

	// Pushed by hardware on interrupt/exception entry.
	Rip, Cs, Rflags, Rsp, Ss uint64
}

// Handler processes a single interrupt or exception. It returns the
// address of the saved Frame the CPU should resume from: trapCommon
// loads it into RSP, pops the general-purpose registers from it and
// executes IRETQ. Ordinarily this is fr itself, but the timer handler
// (internal/sched) substitutes a different thread's saved Frame to
// perform a context switch.
type Handler func(fr *Frame) uintptr

var (
	mu       sync.Mutex
	handlers [256]Handler
)

func init() {
	for i := range handlers {
		handlers[i] = defaultHandler
	}
	Register(VecBreakpoint, breakpointHandler)
	Register(VecInvalidOpcode, invalidOpcodeHandler)
	Register(VecSegmentNP, segmentNotPresentHandler)
	Register(VecGPFault, gpFaultHandler)
	Register(VecPageFault, pageFaultHandler)
	Register(VecDoubleFault, doubleFaultHandler)
	Register(VecApicError, apicErrorHandler)
	Register(VecApicSpurious, spuriousHandler)
}

// Register installs handler for vector, replacing whatever was there
// before (including the default logger).
func Register(vector int, handler Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers[vector] = handler
}

var faultsSeen caller.SeenOnce

// dispatch is called by the assembly entry stub with the pushed frame.
// It is the one place common to every vector: look up the registered
// handler, run it, send the end-of-interrupt for IRQ vectors, and hand
// back whatever stack pointer the handler chose.
//
//go:nosplit
func dispatch(fr *Frame) uintptr {
	h := handlers[fr.Vector]
	newsp := h(fr)
	if fr.Vector >= VecTimer {
		apic.EndOfInterrupt()
	}
	return newsp
}

func defaultHandler(fr *Frame) uintptr {
	if faultsSeen.Check(uintptr(fr.Rip)) {
		fmt.Printf("trap: unhandled vector %d at rip=%#x\n%s\n", fr.Vector, fr.Rip, caller.Dump(2))
	}
	return uintptr(unsafe.Pointer(fr))
}
