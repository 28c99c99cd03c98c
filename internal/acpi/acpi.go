// Package acpi walks just enough of the ACPI table set — the RSDP, the
// XSDT, and the MADT (APIC) table — to discover the local APIC's
// physical address, the IO-APIC(s), and the per-CPU LAPIC ID list that
// internal/smp needs for bring-up. It does not implement AML or any
// other ACPI subsystem: this kernel has no power management or
// hotplug to drive.
package acpi

import (
	"unsafe"

	"nox/internal/mem"
)

// Info is the subset of ACPI-discovered hardware addresses the rest of
// the kernel needs.
type Info struct {
	LocalApicAddr mem.Pa_t
	IoApicAddr    mem.Pa_t
	CpuLapicIDs   []uint32
}

type rsdpV2 struct {
	Signature      [8]byte
	Checksum       uint8
	OEMID          [6]byte
	Revision       uint8
	RsdtAddress    uint32
	Length         uint32
	XsdtAddress    uint64
	ExtChecksum    uint8
	_              [3]byte
}

type sdtHeader struct {
	Signature       [4]byte
	Length          uint32
	Revision        uint8
	Checksum        uint8
	OEMID           [6]byte
	OEMTableID      [8]byte
	OEMRevision     uint32
	CreatorID       uint32
	CreatorRevision uint32
}

const (
	madtEntryLocalApic = 0
	madtEntryIoApic    = 1
)

// Parse reads the table chain starting at the physical RSDP address the
// bootloader reports and returns the discovered hardware addresses.
func Parse(rsdpPhys mem.Pa_t) *Info {
	rsdp := (*rsdpV2)(unsafe.Pointer(mem.Dmap(rsdpPhys)))
	xsdt := (*sdtHeader)(unsafe.Pointer(mem.Dmap(mem.Pa_t(rsdp.XsdtAddress))))

	entries := (int(xsdt.Length) - binSdtHeaderSize) / 8
	base := uintptr(unsafe.Pointer(xsdt)) + uintptr(binSdtHeaderSize)
	info := &Info{}
	for i := 0; i < entries; i++ {
		entryPtr := (*uint64)(unsafe.Pointer(base + uintptr(i)*8))
		hdr := (*sdtHeader)(unsafe.Pointer(mem.Dmap(mem.Pa_t(*entryPtr))))
		if hdr.Signature == [4]byte{'A', 'P', 'I', 'C'} {
			parseMadt(hdr, info)
		}
	}
	return info
}

const binSdtHeaderSize = 36

func parseMadt(hdr *sdtHeader, info *Info) {
	type madtFixed struct {
		sdtHeader
		LocalApicAddr uint32
		Flags         uint32
	}
	m := (*madtFixed)(unsafe.Pointer(hdr))
	info.LocalApicAddr = mem.Pa_t(m.LocalApicAddr)

	p := uintptr(unsafe.Pointer(hdr)) + unsafe.Sizeof(*m)
	end := uintptr(unsafe.Pointer(hdr)) + uintptr(hdr.Length)
	for p < end {
		entryType := *(*uint8)(unsafe.Pointer(p))
		entryLen := *(*uint8)(unsafe.Pointer(p + 1))
		switch entryType {
		case madtEntryLocalApic:
			apicID := *(*uint8)(unsafe.Pointer(p + 3))
			info.CpuLapicIDs = append(info.CpuLapicIDs, uint32(apicID))
		case madtEntryIoApic:
			addr := *(*uint32)(unsafe.Pointer(p + 4))
			info.IoApicAddr = mem.Pa_t(addr)
		}
		if entryLen == 0 {
			break
		}
		p += uintptr(entryLen)
	}
}
