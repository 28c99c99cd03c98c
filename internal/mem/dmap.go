// Package mem: direct-map window management.
//
// The bootloader hands the kernel a higher-half direct map (HHDM): every
// physical address pa is also accessible at hhdmOffset+pa. biscuit builds
// this mapping itself via a recursive PML4 slot and raw CPUID/CR4 probes;
// this kernel instead trusts the Limine-style boot protocol to have
// already built it, and only needs to record the offset it reports.
package mem

import "unsafe"

var hhdmOffset uintptr

// SetHHDMOffset records the bootloader-reported direct-map base address.
// Called once, by internal/boot, before Phys_init.
func SetHHDMOffset(off uintptr) {
	hhdmOffset = off
}

// HHDMOffset returns the current direct-map base address.
func HHDMOffset() uintptr {
	return hhdmOffset
}

// Dmap returns the direct-mapped virtual page containing the physical
// address p, rounded down to a page boundary.
func Dmap(p Pa_t) *Pg_t {
	v := hhdmOffset + (uintptr(p) &^ uintptr(PGOFFSET))
	return (*Pg_t)(unsafe.Pointer(v))
}

// Dmap_v2p converts a direct-mapped virtual address back to its physical
// address.
func Dmap_v2p(v *Pg_t) Pa_t {
	va := uintptr(unsafe.Pointer(v))
	if va < hhdmOffset {
		panic("address is not in the direct map")
	}
	return Pa_t(va - hhdmOffset)
}

// Dmap8 returns the direct-mapped byte slice starting exactly at physical
// address p and running to the end of that page.
func Dmap8(p Pa_t) []uint8 {
	pg := Dmap(p)
	off := p & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}
