package orchestrator

// Snapshot is a point-in-time summary of pipeline health, exposed to
// the operator control surface's status command.
type Snapshot struct {
	ActivePipelines       int
	StageCounts           map[Stage]int
	SuccessCount          int
	FailureCount          int
	SuccessRate           float64
	HealingTimeEMASeconds float64
}

// Snapshot builds a current Snapshot. Safe for concurrent use.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[Stage]int)
	for _, entry := range e.pipeline {
		counts[entry.Stage]++
	}

	total := e.successCount + e.failureCount
	rate := 0.0
	if total > 0 {
		rate = float64(e.successCount) / float64(total)
	}

	return Snapshot{
		ActivePipelines:       len(e.pipeline),
		StageCounts:           counts,
		SuccessCount:          e.successCount,
		FailureCount:          e.failureCount,
		SuccessRate:           rate,
		HealingTimeEMASeconds: e.healingEMA.Value(),
	}
}
