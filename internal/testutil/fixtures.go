// Package testutil provides fixture builders and a deterministic clock
// for tests across the pipeline stages, mirroring the teacher's
// test/ directory in spirit (it has no reusable fixture package of its
// own; this one is new, needed because every stage from correlation
// onward reasons about devices, topology, and time windows).
package testutil

import (
	"sync"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// SampleDevice returns a fully-capable, automation-enabled device
// fixture with the given hostname, ready to pass every safety check.
func SampleDevice(hostname string) model.Device {
	return model.Device{
		Hostname:          hostname,
		MgmtIP:            "10.0.0." + hostname[len(hostname)-1:],
		Vendor:            "cisco",
		Model:             "ASR9000",
		OS:                "ios-xr",
		Status:            model.DeviceUp,
		AutomationEnabled: true,
		Capabilities:      model.Capabilities{NETCONF: true, SSH: true, SNMP: true},
		Site:              "site-a",
		Criticality:       "standard",
	}
}

// SampleTopology returns a small chain topology (r1-r2-r3) plus a
// "voip" service dependent on all three, with r3 marked critical to
// that service. Useful for exercising dependency-graph traversal in
// RCA and topology-aware correlation scope expansion.
func SampleTopology() *model.Topology {
	return &model.Topology{
		TopologyID: model.DefaultTopologyID,
		Devices:    []string{"r1", "r2", "r3"},
		Links: []model.Link{
			{SourceDevice: "r1", SourceInterface: "Gi0/0", DestDevice: "r2", DestInterface: "Gi0/0", Status: model.LinkUp},
			{SourceDevice: "r2", SourceInterface: "Gi0/1", DestDevice: "r3", DestInterface: "Gi0/0", Status: model.LinkUp},
		},
		Services: []model.Service{
			{Name: "voip", DependentDevices: []string{"r1", "r2", "r3"}, CriticalDevices: []string{"r3"}, SLA: "99.9"},
		},
		Sites: map[string][]string{"site-a": {"r1", "r2", "r3"}},
	}
}

// FakeClock is a mutex-guarded, manually-advanced clock for
// deterministic tests of window/dedup/timeout logic that would
// otherwise race against time.Now().
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock fixed at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the clock's current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *FakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
