// Package display owns the one piece of hardware state every other
// graphics-adjacent package needs: where the real, scanned-out
// framebuffer lives in physical memory and what its geometry is.
// internal/boot fills this in from the bootloader handoff before
// anything else runs; internal/tty is the only consumer.
package display

import "nox/internal/mem"

// Info describes the bootloader-provided linear framebuffer: a single
// contiguous run of physical memory, Height rows of Pitch bytes each,
// Bpp bytes per pixel.
type Info struct {
	Base          mem.Pa_t
	Width, Height uint32
	Pitch         uint32
	Bpp           uint8
}

var current Info

// Set records fb as the active framebuffer. Called once by
// internal/boot during Info.Apply.
func Set(fb Info) {
	current = fb
}

// Current returns the framebuffer internal/boot recorded.
func Current() Info {
	return current
}

// Size returns the framebuffer's total byte length.
func (i Info) Size() uint32 {
	return i.Pitch * i.Height
}

// Pages returns how many 4 KiB frames back the framebuffer, rounding
// up to a whole page.
func (i Info) Pages() int {
	return (int(i.Size()) + mem.PGSIZE - 1) / mem.PGSIZE
}
