// Package klog is the kernel's logger: everything written through it
// goes both to the console (via fmt, matching biscuit's plain
// fmt.Printf diagnostic style) and into an in-memory ring (internal/
// circbuf) so the last several kilobytes of log output survive a panic
// that takes the console driver down with it.
package klog

import (
	"fmt"
	"sync"

	"nox/internal/circbuf"
)

// ringSize is generous enough to hold a full boot log plus the run-up to
// a crash; it is not meant to hold a long-running system's full history.
const ringSize = 64 * 1024

var (
	mu   sync.Mutex
	ring circbuf.Circbuf_t
)

func init() {
	ring.Init(ringSize)
}

func logf(level, format string, args ...interface{}) {
	line := fmt.Sprintf("["+level+"] "+format+"\n", args...)
	mu.Lock()
	ring.Write([]byte(line))
	mu.Unlock()
	fmt.Print(line)
}

// Infof logs an informational line.
func Infof(format string, args ...interface{}) {
	logf("info", format, args...)
}

// Warnf logs a warning line.
func Warnf(format string, args ...interface{}) {
	logf("warn", format, args...)
}

// Errorf logs an error line.
func Errorf(format string, args ...interface{}) {
	logf("error", format, args...)
}

// Dump returns the ring's current contents, oldest first, for inclusion
// in a fault dump.
func Dump() []byte {
	mu.Lock()
	defer mu.Unlock()
	return ring.Snapshot()
}
