package trap

import (
	"fmt"
	"unsafe"

	"nox/internal/caller"
	"nox/internal/cpu"
	"nox/internal/diag"
	"nox/internal/disasm"
)

// breakpointHandler logs and resumes; INT3 is a diagnostic tool, not a
// fault.
func breakpointHandler(fr *Frame) uintptr {
	fmt.Printf("trap: breakpoint at rip=%#x\n", fr.Rip)
	return uintptr(unsafe.Pointer(fr))
}

// segmentNotPresentHandler and doubleFaultHandler are unrecoverable: the
// process or the kernel referenced a segment/descriptor the CPU refused,
// or a fault occurred while the CPU was already handling one, something
// no component of this kernel should ever trigger once startup
// completes. There is no narrower scope to confine the damage to, so
// these bring the whole kernel down.
func segmentNotPresentHandler(fr *Frame) uintptr {
	logFatalFault("segment not present", fr)
	panic("segment not present")
}

func doubleFaultHandler(fr *Frame) uintptr {
	logFatalFault("double fault", fr)
	panic("double fault")
}

// gpFaultHandler, pageFaultHandler and invalidOpcodeHandler are
// recoverable: they log the fault and then halt only the CPU that
// raised it, leaving every other CPU running. haltOffendingCPU never
// returns, so the goroutine standing in for that CPU (internal/smp)
// simply stops scheduling work on it instead of unwinding a panic that
// would take the whole simulated machine down with it.
func gpFaultHandler(fr *Frame) uintptr {
	logFatalFault("general protection fault", fr)
	return haltOffendingCPU()
}

// pageFaultHandler logs the faulting instruction's disassembly (via
// golang.org/x/arch/x86/x86asm) before handing off — wired here rather
// than threaded through every caller because a page fault is the one
// trap whose Cr2-equivalent fault address, once user mappings exist,
// needs the disassembly context to diagnose.
func pageFaultHandler(fr *Frame) uintptr {
	logFatalFault("page fault", fr)
	if faultsSeen.Check(uintptr(fr.Rip)) {
		if txt, err := disasm.InstructionAt(uintptr(fr.Rip)); err == nil {
			fmt.Printf("trap: faulting instruction: %s\n", txt)
		}
	}
	return haltOffendingCPU()
}

func invalidOpcodeHandler(fr *Frame) uintptr {
	logFatalFault("invalid opcode", fr)
	return haltOffendingCPU()
}

// haltOffendingCPU parks the calling CPU in an idle loop forever. It
// never returns to the caller, so dispatch never gets a stack pointer
// back for this CPU and no further code runs on it — but nothing about
// the process as a whole is disturbed, matching the original kernel's
// distinction between a fault that kills the whole system and one that
// only takes a single core offline.
func haltOffendingCPU() uintptr {
	for {
		cpu.Halt()
	}
}

func apicErrorHandler(fr *Frame) uintptr {
	fmt.Printf("trap: local APIC error\n")
	return uintptr(unsafe.Pointer(fr))
}

func spuriousHandler(fr *Frame) uintptr {
	return uintptr(unsafe.Pointer(fr))
}

func logFatalFault(name string, fr *Frame) {
	fmt.Printf("trap: %s, rip=%#x error=%#x\n%s\n", name, fr.Rip, fr.ErrorCode, caller.Dump(3))
	diag.DumpFaultProfile(name, uintptr(fr.Rip))
}
