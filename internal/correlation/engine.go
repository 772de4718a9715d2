// Package correlation implements the alert correlation engine: a
// pre-correlation dedup gate, rule-based topology-aware matching, and
// incident join/create logic (spec §4.2).
package correlation

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

// Engine drains queued alerts in batches and folds them into incidents.
type Engine struct {
	cfg     config.CorrelationConfig
	store   store.Store
	metrics *observability.Metrics
	bus     *events.Bus
	log     *zap.Logger

	mu      sync.Mutex
	pending []string // alert IDs awaiting the next batch tick
}

// New creates an Engine. Call Run to start draining.
func New(cfg config.CorrelationConfig, st store.Store, m *observability.Metrics, bus *events.Bus, log *zap.Logger) *Engine {
	return &Engine{cfg: cfg, store: st, metrics: m, bus: bus, log: log}
}

// Enqueue queues an alert ID for the next batch tick.
func (e *Engine) Enqueue(alertID string) {
	e.mu.Lock()
	e.pending = append(e.pending, alertID)
	e.mu.Unlock()
}

// Run subscribes to bus.Alerts and drains up to cfg.BatchSize queued
// alerts every cfg.TickInterval, until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case a := <-e.bus.Alerts:
			e.Enqueue(a.AlertID)
		case <-ticker.C:
			e.drainBatch()
		}
	}
}

// drainBatch pops up to cfg.BatchSize pending alert IDs and processes
// each in turn.
func (e *Engine) drainBatch() {
	e.mu.Lock()
	n := e.cfg.BatchSize
	if n <= 0 || n > len(e.pending) {
		n = len(e.pending)
	}
	batch := e.pending[:n]
	e.pending = e.pending[n:]
	e.mu.Unlock()

	for _, id := range batch {
		e.processAlert(id)
	}
}

// processAlert runs the dedup gate, then rule matching, for one alert.
func (e *Engine) processAlert(alertID string) {
	alert, err := e.store.GetAlert(alertID)
	if err != nil || alert == nil {
		if err != nil {
			e.log.Warn("correlation: alert lookup failed", zap.String("alert_id", alertID), zap.Error(err))
			e.metrics.CorrelationErrorsTotal.Inc()
		}
		return
	}

	if e.suppressIfDuplicate(alert) {
		return
	}

	rules := matchingRules(alert.Type)
	if len(rules) == 0 {
		e.fallback(alert)
		return
	}

	for _, rule := range rules {
		if e.tryRule(alert, rule) {
			return
		}
	}
}

// suppressIfDuplicate implements the §4.2 deduplication gate: if
// another open/acknowledged alert on (device,type) exists within
// DedupWindow, this alert is suppressed into it instead of correlated.
func (e *Engine) suppressIfDuplicate(alert *model.Alert) bool {
	all, err := e.store.ListAlerts()
	if err != nil {
		e.log.Warn("correlation: list alerts failed", zap.Error(err))
		e.metrics.CorrelationErrorsTotal.Inc()
		return false
	}

	var parent *model.Alert
	for i := range all {
		c := all[i]
		if c.AlertID == alert.AlertID {
			continue
		}
		if c.Device != alert.Device || c.Type != alert.Type {
			continue
		}
		if c.Status != model.AlertOpen && c.Status != model.AlertAcknowledged {
			continue
		}
		if alert.FirstOccurrence.Sub(c.LastOccurrence) > e.cfg.DedupWindow || c.LastOccurrence.Sub(alert.FirstOccurrence) > e.cfg.DedupWindow {
			continue
		}
		if parent == nil || c.FirstOccurrence.Before(parent.FirstOccurrence) {
			cp := c
			parent = &cp
		}
	}

	if parent == nil {
		return false
	}

	alert.Status = model.AlertSuppressed
	alert.ParentAlert = parent.AlertID
	parent.OccurrenceCount++
	parent.LastOccurrence = alert.LastOccurrence

	if err := e.store.PutAlert(*alert); err != nil {
		e.log.Warn("correlation: persist suppressed alert failed", zap.Error(err))
	}
	if err := e.store.PutAlert(*parent); err != nil {
		e.log.Warn("correlation: persist dedup parent failed", zap.Error(err))
	}
	return true
}

// tryRule evaluates one rule against alert. Returns true if the alert
// was committed to an incident (join or create), false if the rule
// didn't apply (no candidates, or confidence below threshold).
func (e *Engine) tryRule(alert *model.Alert, rule Rule) bool {
	scope := e.deviceScope(alert.Device, rule.TopologyDependent)
	candidates, err := e.candidateAlerts(alert, rule, scope)
	if err != nil {
		e.log.Warn("correlation: candidate search failed", zap.String("rule", rule.Name), zap.Error(err))
		e.metrics.CorrelationErrorsTotal.Inc()
		return false
	}
	if len(candidates) == 0 {
		return false
	}

	score := confidence(scoreInputs{
		base:            rule.ConfidenceBase,
		candidateCount:  len(candidates),
		avgDeltaT:       avgAbsDelta(alert.FirstOccurrence, candidates),
		window:          rule.TimeWindow,
		sameDeviceCount: countSameDevice(alert.Device, candidates),
	})
	e.metrics.CorrelationConfidenceHistogram.Observe(score)

	if score < e.cfg.MinConfidence {
		return false
	}

	var joinTarget *model.Alert
	for i := range candidates {
		if candidates[i].IncidentID != "" {
			joinTarget = &candidates[i]
			break
		}
	}

	if joinTarget != nil {
		e.join(alert, joinTarget.IncidentID, candidates)
	} else {
		e.create(alert, candidates)
	}
	return true
}

// deviceScope expands alert.device to the topology-aware device set a
// topology-dependent rule is allowed to search, bounded by
// MaxCorrelationDistance additional devices.
func (e *Engine) deviceScope(device string, topologyDependent bool) []string {
	if !topologyDependent {
		return []string{device}
	}
	topo, err := e.store.GetTopology(model.DefaultTopologyID)
	if err != nil || topo == nil {
		return []string{device}
	}

	neighbors := topo.Neighbors(device)
	cosite := topo.CoSiteDevices(device, e.cfg.MaxCoSiteDevices)

	seen := map[string]bool{device: true}
	var extra []string
	for _, d := range append(append([]string{}, neighbors...), cosite...) {
		if !seen[d] {
			seen[d] = true
			extra = append(extra, d)
		}
	}
	if e.cfg.MaxCorrelationDistance > 0 && len(extra) > e.cfg.MaxCorrelationDistance {
		extra = extra[:e.cfg.MaxCorrelationDistance]
	}
	return append([]string{device}, extra...)
}

// candidateAlerts returns open/acknowledged alerts of rule.CorrelatedTypes
// on a device in scope, within [alert.ts-W, alert.ts+W], excluding alert
// itself.
func (e *Engine) candidateAlerts(alert *model.Alert, rule Rule, scope []string) ([]model.Alert, error) {
	all, err := e.store.ListAlerts()
	if err != nil {
		return nil, err
	}

	var out []model.Alert
	for _, c := range all {
		if c.AlertID == alert.AlertID {
			continue
		}
		if c.Status != model.AlertOpen && c.Status != model.AlertAcknowledged {
			continue
		}
		if !contains(rule.CorrelatedTypes, c.Type) {
			continue
		}
		if !contains(scope, c.Device) {
			continue
		}
		if c.LastOccurrence.Before(alert.FirstOccurrence.Add(-rule.TimeWindow)) || c.LastOccurrence.After(alert.FirstOccurrence.Add(rule.TimeWindow)) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// join appends alert and any not-yet-correlated candidates to an
// existing incident.
func (e *Engine) join(alert *model.Alert, incidentID string, candidates []model.Alert) {
	incident, err := e.store.GetIncident(incidentID)
	if err != nil || incident == nil {
		e.log.Warn("correlation: join target missing", zap.String("incident_id", incidentID), zap.Error(err))
		e.metrics.CorrelationErrorsTotal.Inc()
		return
	}

	now := time.Now().UTC()
	incident.AddAlert(alert.AlertID, alert.Device)
	incident.Severity = model.MaxSeverity(incident.Severity, alert.Severity)
	alert.IncidentID = incidentID

	for i := range candidates {
		c := candidates[i]
		if c.IncidentID != "" {
			continue
		}
		incident.AddAlert(c.AlertID, c.Device)
		c.IncidentID = incidentID
		if err := e.store.PutAlert(c); err != nil {
			e.log.Warn("correlation: persist joined candidate failed", zap.Error(err))
		}
	}

	incident.UpdatedAt = now
	if err := e.store.PutIncident(*incident); err != nil {
		e.log.Warn("correlation: persist joined incident failed", zap.Error(err))
		return
	}
	if err := e.store.PutAlert(*alert); err != nil {
		e.log.Warn("correlation: persist joining alert failed", zap.Error(err))
		return
	}

	e.metrics.CorrelationIncidentsTotal.WithLabelValues("joined").Inc()
	e.bus.PublishIncident(events.IncidentEvent{IncidentID: incidentID, Outcome: events.IncidentUpdated, At: now})
}

// create starts a new incident from alert plus its matched candidates.
func (e *Engine) create(alert *model.Alert, candidates []model.Alert) {
	now := time.Now().UTC()

	seq, err := e.store.NextSequence("INC", now)
	if err != nil {
		e.log.Warn("correlation: sequence allocation failed", zap.Error(err))
		e.metrics.CorrelationErrorsTotal.Inc()
		return
	}
	id := model.NewSequencedID("INC", now, seq)

	members := append([]model.Alert{*alert}, candidates...)
	severity := alert.Severity
	earliest := alert.FirstOccurrence
	for _, m := range members {
		severity = model.MaxSeverity(severity, m.Severity)
		if m.FirstOccurrence.Before(earliest) {
			earliest = m.FirstOccurrence
		}
	}

	incident := model.Incident{
		IncidentID:     id,
		PrimaryAlert:   alert.AlertID,
		Severity:       severity,
		Priority:       priorityFor(severity, len(members)),
		State:          model.IncidentOpen,
		FirstAlertTime: earliest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, m := range members {
		incident.AddAlert(m.AlertID, m.Device)
	}

	alert.IncidentID = id
	if err := e.store.PutAlert(*alert); err != nil {
		e.log.Warn("correlation: persist new-incident alert failed", zap.Error(err))
		return
	}
	for i := range candidates {
		c := candidates[i]
		c.IncidentID = id
		if err := e.store.PutAlert(c); err != nil {
			e.log.Warn("correlation: persist new-incident candidate failed", zap.Error(err))
		}
	}
	if err := e.store.PutIncident(incident); err != nil {
		e.log.Warn("correlation: persist new incident failed", zap.Error(err))
		return
	}

	e.metrics.CorrelationIncidentsTotal.WithLabelValues("created").Inc()
	e.bus.PublishIncident(events.IncidentEvent{IncidentID: id, Outcome: events.IncidentCreated, At: now})
}

// fallback handles alerts whose type matches no baseline rule: attach
// to an existing open incident on the same device within
// cfg.FallbackWindow, if one exists. No incident is created if none
// is found (spec §4.2 "no-rule fallback").
func (e *Engine) fallback(alert *model.Alert) {
	incidents, err := e.store.ListOpenIncidentsForDevice(alert.Device)
	if err != nil {
		e.log.Warn("correlation: fallback lookup failed", zap.Error(err))
		e.metrics.CorrelationErrorsTotal.Inc()
		return
	}

	var target *model.Incident
	for i := range incidents {
		inc := incidents[i]
		if alert.FirstOccurrence.Sub(inc.UpdatedAt) > e.cfg.FallbackWindow || inc.UpdatedAt.Sub(alert.FirstOccurrence) > e.cfg.FallbackWindow {
			continue
		}
		if target == nil || inc.UpdatedAt.After(target.UpdatedAt) {
			cp := inc
			target = &cp
		}
	}
	if target == nil {
		return
	}

	now := time.Now().UTC()
	target.AddAlert(alert.AlertID, alert.Device)
	target.Severity = model.MaxSeverity(target.Severity, alert.Severity)
	target.UpdatedAt = now
	alert.IncidentID = target.IncidentID

	if err := e.store.PutIncident(*target); err != nil {
		e.log.Warn("correlation: persist fallback incident failed", zap.Error(err))
		return
	}
	if err := e.store.PutAlert(*alert); err != nil {
		e.log.Warn("correlation: persist fallback alert failed", zap.Error(err))
		return
	}

	e.metrics.CorrelationIncidentsTotal.WithLabelValues("fallback_attached").Inc()
	e.bus.PublishIncident(events.IncidentEvent{IncidentID: target.IncidentID, Outcome: events.IncidentUpdated, At: now})
}
