package testutil

import (
	"testing"
	"time"
)

func TestFakeClock_AdvanceIsMonotonicFromStart(t *testing.T) {
	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Fatalf("expected Now()==start, got %v", got)
	}

	advanced := clock.Advance(90 * time.Second)
	want := start.Add(90 * time.Second)
	if !advanced.Equal(want) {
		t.Errorf("expected Advance to return %v, got %v", want, advanced)
	}
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("expected Now() to reflect advance, got %v", got)
	}
}

func TestSampleTopology_LinksAreConsistentWithDevices(t *testing.T) {
	topo := SampleTopology()
	known := map[string]bool{}
	for _, d := range topo.Devices {
		known[d] = true
	}
	for _, l := range topo.Links {
		if !known[l.SourceDevice] || !known[l.DestDevice] {
			t.Errorf("link %+v references a device outside topo.Devices", l)
		}
	}
}

func TestSampleDevice_PassesAutomationGate(t *testing.T) {
	d := SampleDevice("r1")
	if !d.AutomationEnabled {
		t.Error("expected SampleDevice to be automation-enabled by default")
	}
	if !d.Capabilities.NETCONF && !d.Capabilities.SSH {
		t.Error("expected SampleDevice to support at least one remediation method")
	}
}
