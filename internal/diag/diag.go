// Package diag builds post-mortem diagnostic dumps for unrecoverable
// kernel faults, using github.com/google/pprof's profile format so a
// fault dump can be inspected with the same pprof tooling developers
// already use for Go heap and CPU profiles.
package diag

import (
	"fmt"
	"time"

	"github.com/google/pprof/profile"

	"nox/internal/klog"
)

// DumpFaultProfile records a single-sample profile.Profile describing an
// unrecoverable fault: one pseudo-stack frame naming the fault and one
// naming the faulting instruction pointer. It is not written to a file
// (this kernel has no filesystem), and the profile itself is not
// serialized or kept: once it validates, only a one-line summary of it
// (reason, rip, sample count) is written to the in-memory log ring via
// klog, where it survives a later panic.
func DumpFaultProfile(reason string, rip uintptr) {
	fnReason := &profile.Function{ID: 1, Name: reason}
	fnRip := &profile.Function{ID: 2, Name: fmt.Sprintf("rip=%#x", rip)}
	p := &profile.Profile{
		TimeNanos: time.Now().UnixNano(),
		SampleType: []*profile.ValueType{
			{Type: "fault", Unit: "count"},
		},
		Function: []*profile.Function{fnReason, fnRip},
		Location: []*profile.Location{
			{ID: 1, Line: []profile.Line{{Function: fnReason}}},
			{ID: 2, Line: []profile.Line{{Function: fnRip}}},
		},
	}
	p.Sample = []*profile.Sample{
		{Location: p.Location, Value: []int64{1}},
	}
	if err := p.CheckValid(); err != nil {
		klog.Errorf("diag: invalid fault profile: %v", err)
		return
	}
	klog.Errorf("diag: fault profile recorded: %s at %#x (%d samples)", reason, rip, len(p.Sample))
}
