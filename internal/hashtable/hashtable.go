// Package hashtable implements a sharded hash table with a lock-free Get,
// grounded on biscuit's hashtable package. It backs the kernel's global
// process map: the scheduler's timer path performs many concurrent
// process lookups (Terminated checks, wake-ups) and must never block
// behind a writer that's inserting or removing a process.
package hashtable

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

type elem_t struct {
	key   uint64
	value interface{}
	next  *elem_t
}

type bucket_t struct {
	sync.Mutex // guards writers only; readers use atomic pointer loads
	first      *elem_t
}

func (b *bucket_t) len() int {
	n := 0
	for e := loadptr(&b.first); e != nil; e = loadptr(&e.next) {
		n++
	}
	return n
}

// Hashtable_t maps uint64 keys (e.g. a ProcessId) to arbitrary values.
// Get never takes a lock; Set and Del serialize per-bucket.
type Hashtable_t struct {
	table []*bucket_t
}

// Mk allocates a new Hashtable_t with the given bucket count.
func Mk(buckets int) *Hashtable_t {
	ht := &Hashtable_t{table: make([]*bucket_t, buckets)}
	for i := range ht.table {
		ht.table[i] = &bucket_t{}
	}
	return ht
}

// Size returns the total number of elements stored in the table.
func (ht *Hashtable_t) Size() int {
	n := 0
	for _, b := range ht.table {
		n += b.len()
	}
	return n
}

// Get looks up key without taking any lock.
func (ht *Hashtable_t) Get(key uint64) (interface{}, bool) {
	b := ht.bucket(key)
	for e := loadptr(&b.first); e != nil; e = loadptr(&e.next) {
		if e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// Set inserts or overwrites key's value.
func (ht *Hashtable_t) Set(key uint64, value interface{}) {
	b := ht.bucket(key)
	b.Lock()
	defer b.Unlock()

	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			e.value = value
			return
		}
	}
	n := &elem_t{key: key, value: value, next: b.first}
	storeptr(&b.first, n)
}

// Del removes key if present; it is a no-op otherwise.
func (ht *Hashtable_t) Del(key uint64) {
	b := ht.bucket(key)
	b.Lock()
	defer b.Unlock()

	var last *elem_t
	for e := b.first; e != nil; e = e.next {
		if e.key == key {
			if last == nil {
				storeptr(&b.first, e.next)
			} else {
				storeptr(&last.next, e.next)
			}
			return
		}
		last = e
	}
}

// Iter applies f to each key/value pair currently stored, stopping early
// if f returns true.
func (ht *Hashtable_t) Iter(f func(uint64, interface{}) bool) bool {
	for _, b := range ht.table {
		for e := loadptr(&b.first); e != nil; e = loadptr(&e.next) {
			if f(e.key, e.value) {
				return true
			}
		}
	}
	return false
}

func (ht *Hashtable_t) bucket(key uint64) *bucket_t {
	h := key * 2654435761
	return ht.table[h%uint64(len(ht.table))]
}

// Loads/stores go through atomic.(Load|Store)Pointer rather than a plain Go
// pointer assignment so that a concurrent lock-free Get always observes a
// fully-formed *elem_t, never a torn write.
func loadptr(e **elem_t) *elem_t {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(e))
	return (*elem_t)(atomic.LoadPointer(ptr))
}

func storeptr(p **elem_t, n *elem_t) {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(p))
	atomic.StorePointer(ptr, unsafe.Pointer(n))
}
