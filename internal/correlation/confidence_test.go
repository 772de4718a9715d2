package correlation

import (
	"testing"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

func TestConfidence_ClampedToOne(t *testing.T) {
	score := confidence(scoreInputs{
		base:            0.95,
		candidateCount:  10,
		avgDeltaT:       0,
		window:          120 * time.Second,
		sameDeviceCount: 10,
	})
	if score != 1.0 {
		t.Fatalf("expected clamped score 1.0, got %v", score)
	}
}

func TestConfidence_DensityCapsAtPoint3(t *testing.T) {
	low := confidence(scoreInputs{base: 0, candidateCount: 3, window: time.Minute, avgDeltaT: time.Minute})
	high := confidence(scoreInputs{base: 0, candidateCount: 30, window: time.Minute, avgDeltaT: time.Minute})
	if high-low > 0.31 {
		t.Fatalf("density term should cap near 0.3, got delta %v", high-low)
	}
}

func TestConfidence_RecencyDecaysWithDistance(t *testing.T) {
	near := confidence(scoreInputs{base: 0.5, candidateCount: 1, window: 100 * time.Second, avgDeltaT: 0, sameDeviceCount: 0})
	far := confidence(scoreInputs{base: 0.5, candidateCount: 1, window: 100 * time.Second, avgDeltaT: 200 * time.Second, sameDeviceCount: 0})
	if !(near > far) {
		t.Fatalf("expected nearer candidates to score higher: near=%v far=%v", near, far)
	}
}

func TestAvgAbsDelta(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []model.Alert{
		{LastOccurrence: ts.Add(-10 * time.Second)},
		{LastOccurrence: ts.Add(10 * time.Second)},
	}
	got := avgAbsDelta(ts, candidates)
	if got != 10*time.Second {
		t.Fatalf("expected 10s average, got %v", got)
	}
}

func TestCountSameDevice(t *testing.T) {
	candidates := []model.Alert{
		{Device: "r1"},
		{Device: "r2"},
		{Device: "r1"},
	}
	if got := countSameDevice("r1", candidates); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}
