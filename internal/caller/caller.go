// Package caller prints Go call stacks for kernel panic and fault
// diagnostics, and deduplicates repeated fault sites so a spinning faulty
// driver does not flood the console with identical traces.
package caller

import (
	"fmt"
	"runtime"
	"sync"
)

// Dump formats the call stack starting at the given skip depth as a
// newline-joined "file:line" trace, suitable for a fault-handler log line.
func Dump(skip int) string {
	s := ""
	for i := skip; ; i++ {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if s == "" {
			s = fmt.Sprintf("%s:%d", f, l)
		} else {
			s += fmt.Sprintf("\n\t<-%s:%d", f, l)
		}
	}
	return s
}

// SeenOnce reports whether a fault at the given program counter has already
// been recorded, recording it on first sight. Used by the trap dispatcher
// to log a fault frame only the first time its pc is seen on any CPU.
type SeenOnce struct {
	mu   sync.Mutex
	seen map[uintptr]bool
}

// Check returns true the first time it is called for pc, and false on every
// subsequent call.
func (s *SeenOnce) Check(pc uintptr) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = make(map[uintptr]bool)
	}
	if s.seen[pc] {
		return false
	}
	s.seen[pc] = true
	return true
}
