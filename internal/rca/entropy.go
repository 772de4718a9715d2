package rca

import (
	"math"

	"github.com/sanketsnayak/netheal/internal/model"
)

// typeCounts tallies alert types for the entropy auxiliary signal.
// Adapted from the teacher's internal/anomaly/entropy.go, which keys
// entropy off a fixed [4]uint64 array (3 known BPF event types); RCA's
// alert types are an open string set, so counts are keyed by type name
// instead of a fixed index.
type typeCounts map[string]uint64

// shannonEntropy computes H = -Σ p(eᵢ)·log₂(p(eᵢ)) over counts, in
// bits. Returns 0 for an empty or degenerate (single-type) distribution.
func shannonEntropy(counts typeCounts) float64 {
	var total uint64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	fTotal := float64(total)
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / fTotal
		h -= p * math.Log2(p)
	}
	return h
}

// maxEntropy returns log₂(k), the maximum entropy for k distinct types.
func maxEntropy(k int) float64 {
	if k <= 1 {
		return 0
	}
	return math.Log2(float64(k))
}

// normalisedEntropy returns H/H_max in [0,1]; 0 if H_max is 0.
func normalisedEntropy(counts typeCounts) float64 {
	hMax := maxEntropy(len(counts))
	if hMax == 0 {
		return 0
	}
	return shannonEntropy(counts) / hMax
}

// countTypes tallies alert.Type occurrences.
func countTypes(alerts []model.Alert) typeCounts {
	counts := make(typeCounts)
	for _, a := range alerts {
		counts[a.Type]++
	}
	return counts
}
