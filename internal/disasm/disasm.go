// Package disasm decodes the instruction at a faulting address for
// crash diagnostics, using golang.org/x/arch/x86/x86asm — the same
// decoder the Go toolchain itself uses for objdump — instead of hand
// rolling an x86-64 decode table.
package disasm

import (
	"fmt"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"

	"nox/internal/mem"
)

// maxInstrLen is the longest an x86-64 instruction can legally encode to.
const maxInstrLen = 15

// InstructionAt decodes the instruction whose first byte lives at the
// direct-mapped or identity-mapped virtual address rip and returns its
// Intel-syntax text.
func InstructionAt(rip uintptr) (string, error) {
	bytes := (*[maxInstrLen]byte)(unsafe.Pointer(rip))[:]
	inst, err := x86asm.Decode(bytes, 64)
	if err != nil {
		return "", fmt.Errorf("disasm: decode at %#x: %w", rip, err)
	}
	return x86asm.IntelSyntax(inst, uint64(rip), nil), nil
}

// InstructionAtPhys decodes an instruction given its physical address,
// going through the kernel's direct map rather than assuming the
// address is already mapped into the current address space.
func InstructionAtPhys(pa mem.Pa_t) (string, error) {
	pg := mem.Dmap8(pa)
	inst, err := x86asm.Decode(pg, 64)
	if err != nil {
		return "", fmt.Errorf("disasm: decode phys %#x: %w", pa, err)
	}
	return x86asm.IntelSyntax(inst, uint64(pa), nil), nil
}
