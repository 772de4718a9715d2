package rca

import (
	"testing"

	"github.com/sanketsnayak/netheal/internal/model"
)

func TestBuildGraph_NilTopology(t *testing.T) {
	g := BuildGraph(nil)
	if got := g.Dependents("r1"); got != nil {
		t.Errorf("expected no dependents for nil topology, got %v", got)
	}
}

func TestBuildGraph_LinkEdgesAreBidirectional(t *testing.T) {
	topo := &model.Topology{
		Links: []model.Link{{SourceDevice: "r1", DestDevice: "r2", Status: model.LinkUp}},
	}
	g := BuildGraph(topo)
	if got := g.Dependents("r2"); len(got) != 1 || got[0] != "r1" {
		t.Errorf("expected r1 to depend on r2, got %v", got)
	}
	if got := g.Dependents("r1"); len(got) != 1 || got[0] != "r2" {
		t.Errorf("expected r2 to depend on r1, got %v", got)
	}
}

func TestBuildGraph_ServiceEdges(t *testing.T) {
	topo := &model.Topology{
		Services: []model.Service{
			{Name: "voip", DependentDevices: []string{"sw1", "sw2"}, CriticalDevices: []string{"sw2"}},
		},
	}
	g := BuildGraph(topo)
	if got := g.Dependents("sw1"); len(got) != 1 || got[0] != "voip" {
		t.Errorf("expected voip to depend on sw1, got %v", got)
	}
	if got := g.Dependents("sw2"); len(got) != 1 || got[0] != "voip" {
		t.Errorf("expected voip to depend on sw2, got %v", got)
	}
}
