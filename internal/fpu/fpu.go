// Package fpu saves and restores the x87/SSE register file across a
// thread switch using FXSAVE64/FXRSTOR64, the hardware counterpart to
// the original kernel's per-thread FpState. Every Thread_t in
// internal/proc owns one State_t, touched only by the CPU currently
// running that thread (threads never migrate once placed).
package fpu

import "unsafe"

// State_t is the 512-byte legacy FXSAVE area. It must be 16-byte
// aligned for FXSAVE64/FXRSTOR64 to accept it; area is oversized by 16
// bytes and Save/Restore always operate on the aligned sub-slice so the
// type itself can stay a plain array with no unsafe alignment tricks at
// the call site.
type State_t struct {
	area [512 + 16]byte
}

func (f *State_t) aligned() *byte {
	p := uintptr(unsafe.Pointer(&f.area[0]))
	off := (16 - p%16) % 16
	return &f.area[off]
}

// Save writes the current FPU/SSE state into f.
func (f *State_t) Save() {
	fxsaveAsm(f.aligned())
}

// Restore loads the FPU/SSE state previously captured by Save. A
// zero-valued State_t restores the power-on FPU state, which is what a
// freshly created thread gets before its first Save.
func (f *State_t) Restore() {
	fxrstorAsm(f.aligned())
}

func fxsaveAsm(area *byte)
func fxrstorAsm(area *byte)
