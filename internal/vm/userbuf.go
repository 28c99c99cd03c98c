package vm

import (
	"nox/internal/defs"
	"nox/internal/mem"
)

// Userbuf_t is a cursor over a range of a process's address space,
// following biscuit's Userbuf_t convention of a stateful transfer object
// that can be handed to a copy loop and resumed after a partial
// transfer. biscuit's version threads through an iovec/resource-bound
// syscall layer this kernel doesn't have; this one is a thin cursor over
// Vm_t.Read/Write for copying a single contiguous run. No package in
// this kernel uses it; internal/elfload calls Vm_t.Write directly.
type Userbuf_t struct {
	as  *Vm_t
	va  mem.Va_t
	len int
	off int
}

// Mkuserbuf creates a cursor over len bytes of as starting at userva.
func (as *Vm_t) Mkuserbuf(userva mem.Va_t, len int) *Userbuf_t {
	return &Userbuf_t{as: as, va: userva, len: len}
}

// Remain reports the number of bytes not yet transferred.
func (ub *Userbuf_t) Remain() int {
	return ub.len - ub.off
}

// Totalsz reports the cursor's total length.
func (ub *Userbuf_t) Totalsz() int {
	return ub.len
}

// Uioread copies from the user address range into dst, advancing the
// cursor, and returns the number of bytes copied.
func (ub *Userbuf_t) Uioread(dst []uint8) (int, defs.Err_t) {
	n := len(dst)
	if n > ub.Remain() {
		n = ub.Remain()
	}
	src, err := ub.as.Read(ub.va+mem.Va_t(ub.off), n)
	if err != defs.EOK {
		return 0, err
	}
	copy(dst, src)
	ub.off += n
	return n, defs.EOK
}

// Uiowrite copies src into the user address range, advancing the
// cursor, and returns the number of bytes copied.
func (ub *Userbuf_t) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := len(src)
	if n > ub.Remain() {
		n = ub.Remain()
	}
	if err := ub.as.Write(ub.va+mem.Va_t(ub.off), src[:n]); err != defs.EOK {
		return 0, err
	}
	ub.off += n
	return n, defs.EOK
}
