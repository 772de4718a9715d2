package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/model"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/store"
)

// maxSweepInterval bounds how infrequently Run checks for timed-out
// and evictable-after-retention pipeline entries, regardless of how
// long incident_timeout/audit_retention are configured.
const maxSweepInterval = 10 * time.Second

// sweepInterval picks a cadence fine-grained enough to notice a
// timeout/retention window shortly after it elapses, without busy
// spinning when those windows are long (the production defaults are
// an hour and 5 minutes respectively).
func sweepInterval(cfg config.OrchestratorConfig) time.Duration {
	candidate := cfg.IncidentTimeout / 4
	if r := cfg.AuditRetention / 4; r > 0 && (candidate <= 0 || r < candidate) {
		candidate = r
	}
	if candidate <= 0 || candidate > maxSweepInterval {
		return maxSweepInterval
	}
	if candidate < 10*time.Millisecond {
		return 10 * time.Millisecond
	}
	return candidate
}

// Engine maintains the in-memory pipeline state map and the rolling
// healing-time average, driven entirely by internal/events.Bus.
type Engine struct {
	cfg     config.OrchestratorConfig
	store   store.Store
	metrics *observability.Metrics
	bus     *events.Bus
	log     *zap.Logger

	healingEMA *HealingTimeEMA

	mu            sync.Mutex
	pipeline      map[string]*PipelineEntry
	successCount  int
	failureCount  int
}

// New creates an Engine. Call Run to start consuming bus events.
func New(cfg config.OrchestratorConfig, st store.Store, m *observability.Metrics, bus *events.Bus, log *zap.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      st,
		metrics:    m,
		bus:        bus,
		log:        log,
		healingEMA: NewHealingTimeEMA(cfg.HealingTimeEMAAlpha),
		pipeline:   make(map[string]*PipelineEntry),
	}
}

// Run consumes events from all four bus channels and periodically
// sweeps for timed-out or evictable entries, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval(e.cfg))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case inc := <-e.bus.Incidents:
			e.onIncident(inc)
		case an := <-e.bus.Analyses:
			e.onAnalysis(an)
		case act := <-e.bus.Actions:
			e.onAction(act)
		case <-e.bus.Alerts:
			// Alerts precede incident creation; nothing to track yet.
		case <-ticker.C:
			e.sweep(time.Now().UTC())
		}
	}
}

func (e *Engine) onIncident(evt events.IncidentEvent) {
	now := evt.At
	if now.IsZero() {
		now = time.Now().UTC()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.pipeline[evt.IncidentID]
	if !ok {
		entry = newEntry(evt.IncidentID, now, now.Add(e.cfg.IncidentTimeout))
		e.pipeline[evt.IncidentID] = entry
		e.metrics.OrchestratorActivePipelines.Set(float64(len(e.pipeline)))
	}
	entry.transition(StageRCA, "correlation: incident "+string(evt.Outcome)+", awaiting rca", now)
}

func (e *Engine) onAnalysis(evt events.AnalysisCompleted) {
	now := evt.At
	if now.IsZero() {
		now = time.Now().UTC()
	}

	e.mu.Lock()
	entry, ok := e.pipeline[evt.IncidentID]
	e.mu.Unlock()
	if !ok {
		return
	}

	if evt.TimedOut {
		e.complete(entry, StageFailed, "rca: analysis timed out", now)
		return
	}

	e.mu.Lock()
	entry.transition(StageRCACompleted, "rca: completed, cause="+evt.TopCause, now)
	entry.transition(StageRemediation, "remediation: awaiting policy match", now)
	e.mu.Unlock()
}

func (e *Engine) onAction(evt events.ActionEvent) {
	now := evt.At
	if now.IsZero() {
		now = time.Now().UTC()
	}

	e.mu.Lock()
	entry, ok := e.pipeline[evt.IncidentID]
	e.mu.Unlock()
	if !ok {
		return
	}

	switch evt.Outcome {
	case events.ActionGenerated:
		e.mu.Lock()
		entry.CurrentAction = evt.ActionID
		entry.transition(StageActionGenerated, "remediation: action "+evt.ActionID+" generated", now)
		entry.transition(StageActionQueued, "remediation: action queued for execution", now)
		e.mu.Unlock()
	case events.ActionApprovalRequired:
		e.mu.Lock()
		entry.CurrentAction = evt.ActionID
		entry.transition(StageApprovalRequired, "remediation: action "+evt.ActionID+" awaiting approval", now)
		e.mu.Unlock()
	case events.ActionCompleted:
		e.finishFromAction(entry, evt.ActionID, now)
	}
}

// finishFromAction reads the action's terminal status to decide
// whether the incident healed or the pipeline failed.
func (e *Engine) finishFromAction(entry *PipelineEntry, actionID string, now time.Time) {
	a, err := e.store.GetAction(actionID)
	if err != nil || a == nil {
		e.complete(entry, StageFailed, "remediation: action "+actionID+" not found", now)
		return
	}

	switch a.Status {
	case model.ActionCompleted, model.ActionRolledBack:
		e.complete(entry, StageCompleted, "remediation: action "+actionID+" succeeded ("+string(a.Status)+")", now)
	default:
		e.complete(entry, StageFailed, "remediation: action "+actionID+" terminal as "+string(a.Status), now)
	}
}

// complete transitions entry to a terminal stage, records healing
// time (on success) and outcome metrics. The entry itself is kept in
// the map for AuditRetention before sweep() evicts it.
func (e *Engine) complete(entry *PipelineEntry, stage Stage, note string, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry.transition(stage, note, now)
	entry.HealedAt = now

	if stage == StageCompleted {
		e.successCount++
		seconds := now.Sub(entry.StartedAt).Seconds()
		avg := e.healingEMA.Update(seconds)
		e.metrics.OrchestratorHealingTimeSeconds.Observe(seconds)
		e.metrics.OrchestratorHealingTimeEMASeconds.Set(avg)
	} else {
		e.failureCount++
		e.metrics.OrchestratorFailedHealingsTotal.Inc()
	}
}

// sweep forcibly fails entries past their incident_timeout and evicts
// terminal entries past audit_retention.
func (e *Engine) sweep(now time.Time) {
	e.mu.Lock()
	var toFail []*PipelineEntry
	var toEvict []string
	for id, entry := range e.pipeline {
		if !entry.Stage.IsTerminal() && now.After(entry.Timeout) {
			toFail = append(toFail, entry)
			continue
		}
		if entry.Stage.IsTerminal() && !entry.HealedAt.IsZero() && now.Sub(entry.HealedAt) > e.cfg.AuditRetention {
			toEvict = append(toEvict, id)
		}
	}
	e.mu.Unlock()

	for _, entry := range toFail {
		e.complete(entry, StageFailed, "orchestrator: incident_timeout exceeded", now)
	}

	if len(toEvict) == 0 {
		return
	}
	e.mu.Lock()
	for _, id := range toEvict {
		delete(e.pipeline, id)
	}
	e.metrics.OrchestratorActivePipelines.Set(float64(len(e.pipeline)))
	e.mu.Unlock()
}
