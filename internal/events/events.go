// Package events defines the typed, in-process event shapes that wire
// the five pipeline stages together, replacing the listener-callback
// style of the teacher's source with named channels passed explicitly
// between constructed workers (spec.md §9 "Event wiring").
package events

import "time"

// AlertCreated is emitted by the telemetry collector whenever it
// creates (not coalesces into) a new Alert.
type AlertCreated struct {
	AlertID string
	At      time.Time
}

// IncidentOutcome distinguishes a freshly created incident from one an
// alert was joined into.
type IncidentOutcome string

const (
	IncidentCreated IncidentOutcome = "created"
	IncidentUpdated IncidentOutcome = "updated"
)

// IncidentEvent is emitted by the correlation engine.
type IncidentEvent struct {
	IncidentID string
	Outcome    IncidentOutcome
	At         time.Time
}

// AnalysisCompleted is emitted by the RCA engine.
type AnalysisCompleted struct {
	IncidentID string
	TopCause   string
	Confidence float64
	TimedOut   bool
	At         time.Time
}

// ActionOutcome distinguishes the reasons an action event fires.
type ActionOutcome string

const (
	ActionGenerated        ActionOutcome = "generated"
	ActionCompleted        ActionOutcome = "completed"
	ActionApprovalRequired ActionOutcome = "approval_required"
)

// ActionEvent is emitted by the remediation engine.
type ActionEvent struct {
	ActionID   string
	IncidentID string
	Outcome    ActionOutcome
	At         time.Time
}

// Bus is the set of channels the orchestrator subscribes to. Each
// stage is constructed with the send side of the channel(s) it
// publishes on; the orchestrator holds the receive side of all four.
// Buffered generously so a slow orchestrator tick never blocks a
// stage's own processing loop (spec §5: inter-stage delivery is
// async, non-blocking).
type Bus struct {
	Alerts    chan AlertCreated
	Incidents chan IncidentEvent
	Analyses  chan AnalysisCompleted
	Actions   chan ActionEvent
}

// NewBus creates a Bus with the given per-channel buffer depth.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		Alerts:    make(chan AlertCreated, buffer),
		Incidents: make(chan IncidentEvent, buffer),
		Analyses:  make(chan AnalysisCompleted, buffer),
		Actions:   make(chan ActionEvent, buffer),
	}
}

// PublishAlert sends a, dropping it if the channel is full rather than
// blocking the telemetry collector's hot path.
func (b *Bus) PublishAlert(a AlertCreated) {
	select {
	case b.Alerts <- a:
	default:
	}
}

// PublishIncident sends i, non-blocking.
func (b *Bus) PublishIncident(i IncidentEvent) {
	select {
	case b.Incidents <- i:
	default:
	}
}

// PublishAnalysis sends a, non-blocking.
func (b *Bus) PublishAnalysis(a AnalysisCompleted) {
	select {
	case b.Analyses <- a:
	default:
	}
}

// PublishAction sends a, non-blocking.
func (b *Bus) PublishAction(a ActionEvent) {
	select {
	case b.Actions <- a:
	default:
	}
}
