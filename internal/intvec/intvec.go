// Package intvec allocates interrupt vectors above the fixed exception and
// timer range for drivers registered at runtime, following biscuit's MSI
// vector pool pattern (msi.go) generalized beyond PCI message-signaled
// interrupts to any IO-APIC redirection entry a driver requests.
package intvec

import "sync"

// Vec_t is an interrupt vector number.
type Vec_t uint8

// pool tracks the vectors available for dynamic allocation: 32-founded
// exceptions and the fixed timer/IPI vectors occupy 0-55, leaving 56-254
// for drivers.
type pool_t struct {
	sync.Mutex
	avail map[Vec_t]bool
}

var vecs = newPool(56, 255)

func newPool(low, high int) *pool_t {
	p := &pool_t{avail: make(map[Vec_t]bool, high-low)}
	for v := low; v < high; v++ {
		p.avail[Vec_t(v)] = true
	}
	return p
}

// Alloc reserves and returns an available vector.
func Alloc() Vec_t {
	vecs.Lock()
	defer vecs.Unlock()

	for v := range vecs.avail {
		delete(vecs.avail, v)
		return v
	}
	panic("no more interrupt vectors")
}

// Free releases a previously allocated vector back to the pool.
func Free(v Vec_t) {
	vecs.Lock()
	defer vecs.Unlock()

	if vecs.avail[v] {
		panic("double free of interrupt vector")
	}
	vecs.avail[v] = true
}
