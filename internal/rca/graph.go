// Package rca implements the root-cause analysis engine: a
// dependency graph built from topology, six rule-based analyzers, a
// topology-dependency analyzer, and temporal analyzers, merged and
// ranked into an incident's rca_results (spec §4.3).
package rca

import "github.com/sanketsnayak/netheal/internal/model"

// edge is one weighted dependency edge in the graph: From depends on
// To (To's failure can explain a problem observed at From).
type edge struct {
	to     string
	weight float64
}

// Graph is the dependency graph built once from a Topology: bidirectional
// edges per link (weight 0.6), service-to-device edges (weight 0.8),
// and critical-device edges (weight 1.0).
type Graph struct {
	adjacency map[string][]edge
}

// BuildGraph constructs a Graph from t. A nil topology yields an empty,
// usable (zero-dependent) graph rather than an error, matching the
// teacher's nil-baseline discipline (internal/anomaly/engine.go Score:
// missing input degrades gracefully to a neutral result, never a
// panic or failure).
func BuildGraph(t *model.Topology) *Graph {
	g := &Graph{adjacency: make(map[string][]edge)}
	if t == nil {
		return g
	}

	for _, link := range t.Links {
		g.add(link.SourceDevice, link.DestDevice, 0.6)
		g.add(link.DestDevice, link.SourceDevice, 0.6)
	}

	for _, svc := range t.Services {
		critical := map[string]bool{}
		for _, d := range svc.CriticalDevices {
			critical[d] = true
		}
		for _, d := range svc.DependentDevices {
			if critical[d] {
				g.add(svc.Name, d, 1.0)
			} else {
				g.add(svc.Name, d, 0.8)
			}
		}
	}

	return g
}

func (g *Graph) add(from, to string, weight float64) {
	g.adjacency[from] = append(g.adjacency[from], edge{to: to, weight: weight})
}

// Dependents returns every node that has an edge pointing at device,
// i.e. the devices that "depend on" device in the spec §4.3 sense.
func (g *Graph) Dependents(device string) []string {
	seen := map[string]bool{}
	var out []string
	for from, edges := range g.adjacency {
		for _, e := range edges {
			if e.to == device && !seen[from] {
				seen[from] = true
				out = append(out, from)
			}
		}
	}
	return out
}
