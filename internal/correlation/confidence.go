package correlation

import (
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// scoreInputs are the ingredients of the spec §4.2 confidence formula.
type scoreInputs struct {
	base            float64
	candidateCount  int
	avgDeltaT       time.Duration
	window          time.Duration
	sameDeviceCount int
}

// confidence computes base + min(0.1N,0.3) + max(0,(1-avgΔt/W))*0.2 +
// (sameDeviceCount/N)*0.15, clamped to [0,1]. N = candidateCount, which
// must be > 0 (callers skip rules with zero candidates before scoring).
func confidence(in scoreInputs) float64 {
	n := float64(in.candidateCount)

	density := 0.1 * n
	if density > 0.3 {
		density = 0.3
	}

	recency := 0.0
	if in.window > 0 {
		ratio := float64(in.avgDeltaT) / float64(in.window)
		recency = 1 - ratio
		if recency < 0 {
			recency = 0
		}
	}
	recency *= 0.2

	deviceAffinity := (float64(in.sameDeviceCount) / n) * 0.15

	s := in.base + density + recency + deviceAffinity
	if s > 1.0 {
		s = 1.0
	}
	if s < 0 {
		s = 0
	}
	return s
}

// avgAbsDelta returns the mean absolute duration between ts and each
// candidate's LastOccurrence.
func avgAbsDelta(ts time.Time, candidates []model.Alert) time.Duration {
	if len(candidates) == 0 {
		return 0
	}
	var total time.Duration
	for _, c := range candidates {
		d := ts.Sub(c.LastOccurrence)
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total / time.Duration(len(candidates))
}

// countSameDevice returns how many candidates share device.
func countSameDevice(device string, candidates []model.Alert) int {
	n := 0
	for _, c := range candidates {
		if c.Device == device {
			n++
		}
	}
	return n
}
