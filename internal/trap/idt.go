package trap

import "unsafe"

// gateDescriptor is a 64-bit-mode IDT interrupt-gate descriptor.
type gateDescriptor struct {
	offsetLow  uint16
	selector   uint16
	istAndZero uint8
	typeAttr   uint8
	offsetMid  uint16
	offsetHigh uint32
	reserved   uint32
}

const (
	gateTypeInterrupt = 0x8e // present, DPL0, 32/64-bit interrupt gate
	kernelCS          = 0x08 // matches the GDT layout the bootloader hands off
)

// Segment selectors for the flat GDT this kernel assumes the boot
// sequence installs: one kernel code/data pair and one user code/data
// pair, RPL encoded in the low two bits. internal/proc uses these to
// build the initial trap frame a new thread first resumes into.
const (
	KernelCS = kernelCS
	KernelSS = 0x10
	UserCS   = 0x1b
	UserSS   = 0x23
)

var idt [256]gateDescriptor

func setGate(vector int, handler uintptr, ist uint8) {
	idt[vector] = gateDescriptor{
		offsetLow:  uint16(handler),
		selector:   kernelCS,
		istAndZero: ist & 0x7,
		typeAttr:   gateTypeInterrupt,
		offsetMid:  uint16(handler >> 16),
		offsetHigh: uint32(handler >> 32),
	}
}

type idtDescriptor struct {
	limit uint16
	base  uint64
}

// LoadIDT installs every registered entry-stub address into the IDT and
// executes LIDT. The stub addresses come from entryStubs(), which
// collects the routines defined in entry_amd64.s —
// one concrete assembly routine per vector this kernel actually uses,
// since Go's assembler has no facility to stamp out 256 near-identical
// routines parametrized only by a literal vector number.
func LoadIDT() {
	for vector, addr := range entryStubs() {
		if addr != 0 {
			ist := uint8(0)
			if vector == VecDoubleFault {
				ist = 1
			}
			setGate(vector, addr, ist)
		}
	}
	desc := idtDescriptor{
		limit: uint16(unsafe.Sizeof(idt) - 1),
		base:  uint64(uintptr(unsafe.Pointer(&idt[0]))),
	}
	lidt(uintptr(unsafe.Pointer(&desc)))
}

func lidt(descPtr uintptr)

// entryStubs returns the vector -> assembly-stub-address map for every
// statically wired vector plus the dynamic driver range
// [FirstDynamicVector, FirstDynamicVector+8).
func entryStubs() map[int]uintptr {
	m := map[int]uintptr{
		VecBreakpoint:    stubBreakpointAddr(),
		VecInvalidOpcode: stubInvalidOpcodeAddr(),
		VecSegmentNP:     stubSegmentNPAddr(),
		VecGPFault:       stubGPFaultAddr(),
		VecPageFault:     stubPageFaultAddr(),
		VecDoubleFault:   stubDoubleFaultAddr(),
		VecTimer:         stubTimerAddr(),
		VecApicError:     stubApicErrorAddr(),
		VecApicSpurious:  stubApicSpuriousAddr(),
		VecKeyboard:      stubKeyboardAddr(),
		VecMouse:         stubMouseAddr(),
		VecIPIReschedule: stubIpiRescheduleAddr(),
		VecIPIHalt:       stubIpiHaltAddr(),
	}
	for v := FirstDynamicVector; v < FirstDynamicVector+8; v++ {
		m[v] = stubDynamicAddr(v - FirstDynamicVector)
	}
	return m
}

func stubBreakpointAddr() uintptr
func stubInvalidOpcodeAddr() uintptr
func stubSegmentNPAddr() uintptr
func stubGPFaultAddr() uintptr
func stubPageFaultAddr() uintptr
func stubDoubleFaultAddr() uintptr
func stubTimerAddr() uintptr
func stubApicErrorAddr() uintptr
func stubApicSpuriousAddr() uintptr
func stubKeyboardAddr() uintptr
func stubMouseAddr() uintptr
func stubIpiRescheduleAddr() uintptr
func stubIpiHaltAddr() uintptr

// stubDynamicAddr returns the address of the i'th dynamic-range stub
// (i in [0,8)), each of which pushes FirstDynamicVector+i as its vector
// number before falling into the shared trampoline.
func stubDynamicAddr(i int) uintptr {
	return dynamicStubTable[i]()
}

var dynamicStubTable = [8]func() uintptr{
	stubDyn0Addr, stubDyn1Addr, stubDyn2Addr, stubDyn3Addr,
	stubDyn4Addr, stubDyn5Addr, stubDyn6Addr, stubDyn7Addr,
}

func stubDyn0Addr() uintptr
func stubDyn1Addr() uintptr
func stubDyn2Addr() uintptr
func stubDyn3Addr() uintptr
func stubDyn4Addr() uintptr
func stubDyn5Addr() uintptr
func stubDyn6Addr() uintptr
func stubDyn7Addr() uintptr
