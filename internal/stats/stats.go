// Package stats holds lightweight, compile-time-gatable kernel counters,
// following biscuit's stats.go pattern of zero-cost Counter_t/Cycles_t
// fields that disappear entirely when Stats/Timing are false.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"unsafe"
)

// Stats enables Counter_t increments; Timing enables Cycles_t accumulation.
// Both compile out to no-ops when false, matching biscuit's convention of
// gating diagnostic overhead behind a constant rather than a runtime flag.
const Stats = false
const Timing = false

// Nirqs counts interrupts delivered per vector; Irqs is the running total.
var Nirqs [256]int64
var Irqs int64

// Rdtsc returns the current TSC cycle count when Timing is enabled, via the
// RDTSC instruction (see rdtsc_amd64.s).
func Rdtsc() uint64 {
	if Timing {
		return rdtscAsm()
	}
	return 0
}

func rdtscAsm() uint64

// Counter_t is a statistical event counter.
type Counter_t int64

// Cycles_t accumulates elapsed TSC cycles.
type Cycles_t int64

// Inc increments the counter by one.
func (c *Counter_t) Inc() {
	if Stats {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), 1)
	}
}

// Add adds the cycles elapsed since the RDTSC value m was sampled.
func (c *Cycles_t) Add(m uint64) {
	if Timing {
		atomic.AddInt64((*int64)(unsafe.Pointer(c)), int64(Rdtsc()-m))
	}
}

// RecordIrq bumps the per-vector and total interrupt counters.
func RecordIrq(vector int) {
	atomic.AddInt64(&Irqs, 1)
	if vector >= 0 && vector < len(Nirqs) {
		atomic.AddInt64(&Nirqs[vector], 1)
	}
}

// Stats2String converts a struct of Counter_t/Cycles_t fields into a printable
// diagnostic dump, skipping entirely when Stats is disabled.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
		if strings.HasSuffix(t, "Cycles_t") {
			n := v.Field(i).Interface().(Cycles_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}
