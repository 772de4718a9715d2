package rca

import "fmt"

// topologyDependencyAnalysis implements spec §4.3's dependency-graph
// analyzer: for each affected device, count how many other affected
// devices depend on it (per the dependency graph); the device with the
// most dependents is the suspected root cause.
func topologyDependencyAnalysis(graph *Graph, affectedDevices []string) *Result {
	affected := map[string]bool{}
	for _, d := range affectedDevices {
		affected[d] = true
	}

	var bestDevice string
	bestScore := 0
	for _, d := range affectedDevices {
		score := 0
		for _, dependent := range graph.Dependents(d) {
			if affected[dependent] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestDevice = d
		}
	}

	if bestScore == 0 {
		return nil
	}

	confidence := 0.6 + 0.1*float64(bestScore)
	if confidence > 0.9 {
		confidence = 0.9
	}

	return &Result{
		SuspectedCause: fmt.Sprintf("%s (topology root)", bestDevice),
		Confidence:     confidence,
		ContributingFactors: []string{
			fmt.Sprintf("%d affected devices depend on it", bestScore),
		},
		Analyzer: "topology",
	}
}
