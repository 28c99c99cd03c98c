// Package signal implements the per-process asynchronous signal
// mailbox, grounded 1:1 on the original kernel's SignalManager
// (task/signal.rs): a presence bitmap indexed by signal type plus an
// insertion-ordered list of the signals themselves, with type 0
// permanently reserved. It has no dependency on internal/proc or
// internal/sched — a Manager_t is handed a plain wake-up callback at
// construction, the same way the original takes a free function plus
// the owning ProcessId, so the scheduler/process packages stay free to
// depend on signal instead of the other way around.
package signal

import "sync"

// Signal is one posted event: an application-defined type tag plus a
// fixed 64-byte payload, matching the original's { ty: usize, data:
// [u64;8] }.
type Signal struct {
	Type uint
	Data [8]uint64
}

// Manager_t is one process's signal mailbox.
type Manager_t struct {
	mu         sync.Mutex
	present    []bool
	signals    []Signal
	waitingFor uint
	wakeUp     func()
}

// New creates a manager with room for signalTypes distinct type values
// (type 0 is reserved and never registerable). wakeUp is invoked
// whenever a signal of the type currently being waited for arrives;
// internal/proc binds it to a closure that marks every thread of the
// owning process Ready.
func New(signalTypes int, wakeUp func()) *Manager_t {
	return &Manager_t{present: make([]bool, signalTypes), wakeUp: wakeUp}
}

// HasSignal reports whether a signal of the given type is currently
// registered.
func (m *Manager_t) HasSignal(signalType uint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasLocked(signalType)
}

func (m *Manager_t) hasLocked(signalType uint) bool {
	return int(signalType) < len(m.present) && m.present[signalType]
}

// RegisterSignal posts a new signal and, if the process was waiting for
// this exact type, invokes the wake-up callback and clears the wait.
func (m *Manager_t) RegisterSignal(signalType uint, s Signal) {
	if signalType == 0 {
		panic("signal: type 0 is reserved")
	}
	m.mu.Lock()
	m.present[signalType] = true
	m.signals = append(m.signals, s)
	wake := signalType == m.waitingFor
	if wake {
		m.waitingFor = 0
	}
	m.mu.Unlock()

	if wake && m.wakeUp != nil {
		m.wakeUp()
	}
}

// RegisterWaitFor records that the process is now waiting for
// signalType, without blocking anything itself — the caller is expected
// to separately move its own threads to the Waiting state.
func (m *Manager_t) RegisterWaitFor(signalType uint) {
	m.mu.Lock()
	m.waitingFor = signalType
	m.mu.Unlock()
}

// GetSignal returns the earliest registered signal of the given type,
// without removing it, or false if none is registered.
func (m *Manager_t) GetSignal(signalType uint) (Signal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasLocked(signalType) {
		return Signal{}, false
	}
	for _, s := range m.signals {
		if s.Type == signalType {
			return s, true
		}
	}
	return Signal{}, false
}

// DeleteSignal clears the presence bit for signalType and removes every
// queued signal of that type. It is a no-op if the type was not
// registered.
func (m *Manager_t) DeleteSignal(signalType uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasLocked(signalType) {
		return
	}
	m.present[signalType] = false
	kept := m.signals[:0]
	for _, s := range m.signals {
		if s.Type != signalType {
			kept = append(kept, s)
		}
	}
	m.signals = kept
}
