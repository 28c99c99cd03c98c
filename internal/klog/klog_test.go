package klog

import (
	"strings"
	"testing"
)

func TestInfofAppearsInDump(t *testing.T) {
	Infof("marker-%d", 12345)
	if !strings.Contains(string(Dump()), "marker-12345") {
		t.Fatal("Infof's line did not appear in Dump()")
	}
}

func TestLevelsAreTagged(t *testing.T) {
	Infof("plain info")
	Warnf("plain warn")
	Errorf("plain error")

	dump := string(Dump())
	for _, want := range []string{"[info] plain info", "[warn] plain warn", "[error] plain error"} {
		if !strings.Contains(dump, want) {
			t.Fatalf("Dump() missing %q", want)
		}
	}
}
