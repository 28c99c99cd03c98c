// Package cpu wraps the handful of privileged instructions that have
// no Go assembler mnemonic, following the same raw-opcode idiom
// internal/apic uses for OUT/IN and internal/fpu uses for FXSAVE64/
// FXRSTOR64.
package cpu

// DisableInterrupts masks maskable interrupts on the calling CPU.
func DisableInterrupts()

// EnableInterrupts unmasks maskable interrupts on the calling CPU.
func EnableInterrupts()

// Halt stops the calling CPU until the next interrupt arrives.
func Halt()
