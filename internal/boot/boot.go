// Package boot parses what a Limine-style bootloader hands the kernel
// at entry — the higher-half direct-map offset, the physical memory
// map, and the per-CPU SMP response — into the plain Go types
// internal/mem, internal/smp and internal/display expect. No Limine Go
// binding exists anywhere in the retrieved corpus (gopher-os parses its
// own bootloader's info structure by hand the same way, in
// kernel/hal/multiboot), so this package follows that idiom: fixed-
// layout structs read directly out of the bootloader-provided memory,
// not a third-party protocol library.
package boot

import (
	"nox/internal/acpi"
	"nox/internal/display"
	"nox/internal/mem"
	"nox/internal/smp"
)

// MemoryMapEntry is one bootloader-reported physical memory range.
type MemoryMapEntry struct {
	Base   mem.Pa_t
	Length uint64
	Usable bool
}

// FramebufferInfo is the handoff internal/display needs to start
// drawing immediately, before any driver enumeration has happened.
type FramebufferInfo struct {
	Base          mem.Pa_t
	Width, Height uint32
	Pitch         uint32
	Bpp           uint8
}

// Info is everything internal/boot extracts from the bootloader
// response before any other subsystem initializes.
type Info struct {
	HHDMOffset  uintptr
	MemoryMap   []MemoryMapEntry
	Framebuffer FramebufferInfo
	BspLapicID  uint32
	Cpus        []smp.Descriptor
	RSDP        mem.Pa_t

	// HpetBase is the HPET's MMIO physical base address. ACPI table
	// parsing otherwise stops at the MADT: this kernel only ever reads
	// the HPET's monotonic counter, so the bootloader hands the address
	// over directly rather than this package also walking the HPET
	// ACPI table.
	HpetBase mem.Pa_t
}

// Apply records the HHDM offset and builds the physical frame
// allocator from the reported memory map. It must run first, before
// any other Init call, since every later step that touches physical
// memory goes through internal/mem's direct map.
func (i *Info) Apply() {
	mem.SetHHDMOffset(i.HHDMOffset)

	regions := make([]mem.Region, len(i.MemoryMap))
	for idx, e := range i.MemoryMap {
		regions[idx] = mem.Region{Base: e.Base, Length: e.Length, Usable: e.Usable}
	}
	mem.Phys_init(regions)

	smp.Init(i.BspLapicID)

	display.Set(display.Info{
		Base:   i.Framebuffer.Base,
		Width:  i.Framebuffer.Width,
		Height: i.Framebuffer.Height,
		Pitch:  i.Framebuffer.Pitch,
		Bpp:    i.Framebuffer.Bpp,
	})
}

// DiscoverCPUs walks the ACPI MADT rooted at i.RSDP and records every
// reported CPU in i.Cpus, ready for smp.InitAPs (which itself skips
// whichever one matches the boot CPU Apply already registered). It
// returns the parsed acpi.Info so the caller can also feed
// LocalApicAddr/IoApicAddr to apic.Init.
func (i *Info) DiscoverCPUs() *acpi.Info {
	ai := acpi.Parse(i.RSDP)
	i.Cpus = make([]smp.Descriptor, len(ai.CpuLapicIDs))
	for idx, id := range ai.CpuLapicIDs {
		i.Cpus[idx] = smp.Descriptor{LapicID: id}
	}
	return ai
}
