// Package elfload parses a user binary and maps its loadable segments
// into a fresh address space, playing the role the original kernel's
// ProcessBinary gives to the `object` crate's File::parse/segments()/
// ObjectSegment::data() — here backed by the standard library's
// debug/elf instead of a third-party ELF parser, since no binary-format
// library appears anywhere in the retrieved corpus and the standard
// library already does exactly this job.
package elfload

import (
	"bytes"
	"debug/elf"

	"nox/internal/defs"
	"nox/internal/mem"
	"nox/internal/vm"
)

// LoadSegments parses data as an ELF64 executable and maps every
// PT_LOAD segment into as present, writable and user-accessible,
// copying the segment's file contents in through as.Write. It returns
// the binary's entry point.
func LoadSegments(data []byte, as *vm.Vm_t) (entry mem.Va_t, err defs.Err_t) {
	f, perr := elf.NewFile(bytes.NewReader(data))
	if perr != nil {
		panic("elfload: failed to parse ELF binary: " + perr.Error())
	}
	defer f.Close()

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if e := mapSegment(as, prog); e != defs.EOK {
			return 0, e
		}
	}
	return mem.Va_t(f.Entry), defs.EOK
}

// mapSegment allocates and maps every page touched by prog's memory
// image, zero-filling the gap between Filesz and Memsz implicitly
// (each frame comes from Refpg_new, which zeroes it), then writes the segment's
// file bytes into the mapping.
func mapSegment(as *vm.Vm_t, prog *elf.Prog) defs.Err_t {
	base := mem.Va_t(prog.Vaddr) &^ mem.Va_t(mem.PGOFFSET)
	end := (mem.Va_t(prog.Vaddr+prog.Memsz) + mem.Va_t(mem.PGOFFSET)) &^ mem.Va_t(mem.PGOFFSET)

	data := make([]byte, prog.Filesz)
	if _, rerr := prog.ReadAt(data, 0); rerr != nil {
		return defs.EFAULT
	}

	as.Lock_pmap()
	for va := base; va < end; va += mem.Va_t(mem.PGSIZE) {
		_, pa, ok := mem.Physmem.Refpg_new()
		if !ok {
			as.Unlock_pmap()
			return defs.ENOMEM
		}
		if as.MapTo(va, pa, mem.PTE_P|mem.PTE_W|mem.PTE_U) == vm.BlockedByHugePage {
			mem.Physmem.DeallocateFrame(pa)
			as.Unlock_pmap()
			return defs.ENOMEM
		}
	}
	as.Unlock_pmap()

	return as.Write(mem.Va_t(prog.Vaddr), data)
}
