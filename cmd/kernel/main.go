// Command kernel is the entry point a Limine-style bootloader jumps
// to in long mode with paging already enabled. entry wires every
// subsystem together in the same order the original kernel's
// init_framework/start_schedule did: memory, the boot CPU, the IDT,
// ACPI, HPET, the LAPIC, the scheduler, the APs, and finally the
// global interrupt-enable that lets the first timer tick arrive.
package main

import (
	"nox/internal/apic"
	"nox/internal/boot"
	"nox/internal/cpu"
	"nox/internal/defs"
	"nox/internal/hpet"
	"nox/internal/klog"
	"nox/internal/sched"
	"nox/internal/smp"
	"nox/internal/trap"
	"nox/internal/tty"
	"nox/internal/vm"
)

// entry is called from the assembly startup stub (not shown: it is
// the symbol the bootloader's protocol declares as the kernel's entry
// point) once the bootloader's response structures have been copied
// into info. It never returns.
func entry(info *boot.Info) {
	info.Apply()
	klog.Infof("memory initialized, hhdm offset=%#x", info.HHDMOffset)

	trap.LoadIDT()

	ai := info.DiscoverCPUs()
	apic.Init(ai.LocalApicAddr, ai.IoApicAddr, trap.VecApicSpurious, trap.VecApicError, trap.VecKeyboard, trap.VecMouse)
	klog.Infof("acpi: %d cpus, local apic=%#x, io apic=%#x", len(ai.CpuLapicIDs), ai.LocalApicAddr, ai.IoApicAddr)

	hpet.Init(info.HpetBase)

	apic.CalibrateTimer(trap.VecTimer)
	apic.EnableTimer()
	smp.HpetInit.Store(true)

	// Only safe now that apic.Init has mapped the local APIC's MMIO
	// window: sched.Bootstrap creates the init thread, which reads the
	// running CPU's LAPIC id.
	kernelPmap := vm.CurrentPmap()
	if _, err := sched.Bootstrap(kernelPmap); err != defs.EOK {
		panic("kernel: failed to bootstrap scheduler")
	}

	smp.InitAPs(info.Cpus)

	tty.Init()

	smp.StartSchedule.Store(true)
	cpu.EnableInterrupts()
	klog.Infof("bsp entering run loop")

	for {
		cpu.Halt()
	}
}

func main() {
	// Unreachable: this binary is linked as a freestanding kernel image
	// and started at the symbol entry, never through the Go runtime's
	// normal process startup. main exists only so the package satisfies
	// "package main" for tooling such as tools/depgraph.
	select {}
}
