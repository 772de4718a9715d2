package orchestrator

import "time"

// PipelineEntry tracks one incident's progress through the healing
// pipeline from the moment it is first correlated to its terminal
// outcome.
type PipelineEntry struct {
	IncidentID    string
	Stage         Stage
	StartedAt     time.Time
	UpdatedAt     time.Time
	CurrentAction string
	Events        []string // short human-readable transition log
	Timeout       time.Time
	HealedAt      time.Time // zero until the entry reaches a terminal stage
}

func newEntry(incidentID string, now, timeout time.Time) *PipelineEntry {
	return &PipelineEntry{
		IncidentID: incidentID,
		Stage:      StageCorrelation,
		StartedAt:  now,
		UpdatedAt:  now,
		Timeout:    timeout,
		Events:     []string{"correlation: incident tracked"},
	}
}

func (p *PipelineEntry) transition(stage Stage, note string, now time.Time) {
	p.Stage = stage
	p.UpdatedAt = now
	p.Events = append(p.Events, note)
}
