package rca

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/model"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/store"
)

// Engine queues one analysis per tick for incidents that were created
// or updated, and produces ranked root-cause hypotheses (spec §4.3).
type Engine struct {
	cfg     config.RCAConfig
	store   store.Store
	metrics *observability.Metrics
	bus     *events.Bus
	log     *zap.Logger

	mu      sync.Mutex
	pending []string // incident IDs awaiting analysis
}

// New creates an Engine. Call Run to start draining.
func New(cfg config.RCAConfig, st store.Store, m *observability.Metrics, bus *events.Bus, log *zap.Logger) *Engine {
	return &Engine{cfg: cfg, store: st, metrics: m, bus: bus, log: log}
}

// Enqueue queues an incident for analysis.
func (e *Engine) Enqueue(incidentID string) {
	e.mu.Lock()
	for _, id := range e.pending {
		if id == incidentID {
			e.mu.Unlock()
			return
		}
	}
	e.pending = append(e.pending, incidentID)
	e.mu.Unlock()
}

// Run subscribes to bus.Incidents and analyzes one queued incident per
// cfg.TickInterval, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case inc := <-e.bus.Incidents:
			e.Enqueue(inc.IncidentID)
		case <-ticker.C:
			e.drainOne(ctx)
		}
	}
}

// drainOne pops and analyzes a single queued incident.
func (e *Engine) drainOne(ctx context.Context) {
	e.mu.Lock()
	if len(e.pending) == 0 {
		e.mu.Unlock()
		return
	}
	id := e.pending[0]
	e.pending = e.pending[1:]
	e.mu.Unlock()

	e.analyze(ctx, id)
}

// analyze runs every analyzer against incident id, bounded by
// cfg.AnalysisTimeout, and persists the merged, ranked result.
func (e *Engine) analyze(ctx context.Context, incidentID string) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.AnalysisTimeout)
	defer cancel()

	done := make(chan struct{})
	var results []Result
	var runErr error

	go func() {
		defer close(done)
		results, runErr = e.runAnalyzers(incidentID)
	}()

	select {
	case <-timeoutCtx.Done():
		e.metrics.RCATimeoutsTotal.Inc()
		e.log.Warn("rca: analysis timed out", zap.String("incident_id", incidentID))
		return
	case <-done:
	}

	if runErr != nil {
		e.log.Warn("rca: analysis failed", zap.String("incident_id", incidentID), zap.Error(runErr))
		return
	}

	e.persist(incidentID, results)
}

// runAnalyzers loads the incident's alerts and runs the rule,
// topology, and temporal analyzers against them.
func (e *Engine) runAnalyzers(incidentID string) ([]Result, error) {
	incident, err := e.store.GetIncident(incidentID)
	if err != nil || incident == nil {
		return nil, err
	}

	var alerts []model.Alert
	for _, id := range incident.Alerts {
		a, err := e.store.GetAlert(id)
		if err != nil || a == nil {
			continue
		}
		alerts = append(alerts, *a)
	}
	if len(alerts) == 0 {
		return nil, nil
	}

	var out []Result
	for _, rule := range ruleAnalyzers {
		if r := rule(alerts); r != nil {
			out = append(out, *r)
		}
	}

	topo, _ := e.store.GetTopology(model.DefaultTopologyID)
	graph := BuildGraph(topo)
	if r := topologyDependencyAnalysis(graph, incident.AffectedDevices); r != nil {
		out = append(out, *r)
	}

	for _, r := range temporalAnalysis(alerts) {
		out = append(out, *r)
	}

	return dedupAndRank(out, e.cfg.MinConfidenceThreshold, e.cfg.MaxRootCauses), nil
}

// dedupAndRank collapses results sharing a suspected_cause (keeping
// the higher-confidence one), drops anything below minConfidence, and
// returns the top max by descending confidence.
func dedupAndRank(results []Result, minConfidence float64, max int) []Result {
	best := make(map[string]Result)
	for _, r := range results {
		if r.Confidence < minConfidence {
			continue
		}
		existing, ok := best[r.SuspectedCause]
		if !ok || r.Confidence > existing.Confidence {
			best[r.SuspectedCause] = r
		}
	}

	out := make([]Result, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// persist writes ranked results onto the incident and emits
// analysis_completed.
func (e *Engine) persist(incidentID string, results []Result) {
	incident, err := e.store.GetIncident(incidentID)
	if err != nil || incident == nil {
		return
	}

	now := time.Now().UTC()
	rcaResults := make([]model.RCAResult, len(results))
	for i, r := range results {
		rcaResults[i] = model.RCAResult{
			RCAID:               model.NewRCAID(now),
			SuspectedCause:      r.SuspectedCause,
			Confidence:          r.Confidence,
			ContributingFactors: r.ContributingFactors,
			Evidence:            r.Evidence,
			Timeline:            r.Timeline,
			Analyzer:            r.Analyzer,
			ProducedAt:          now,
		}
	}
	incident.RCAResults = rcaResults

	var topCause string
	var topConfidence float64
	if len(rcaResults) > 0 {
		topCause = rcaResults[0].SuspectedCause
		topConfidence = rcaResults[0].Confidence
	}
	incident.FinalRootCause = topCause
	incident.RootCauseConfidence = topConfidence
	incident.UpdatedAt = now

	if err := e.store.PutIncident(*incident); err != nil {
		e.log.Warn("rca: persist incident failed", zap.Error(err))
		return
	}

	e.metrics.RCAAnalysesTotal.Inc()
	e.metrics.RCAConfidenceHistogram.Observe(topConfidence)
	e.bus.PublishAnalysis(events.AnalysisCompleted{
		IncidentID: incidentID,
		TopCause:   topCause,
		Confidence: topConfidence,
		TimedOut:   false,
		At:         now,
	})
}
