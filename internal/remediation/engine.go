// Package remediation turns a root-caused Incident into a sequenced,
// safety-checked remediation Action and drives it through execution,
// verification, retry, and rollback (spec §4.4).
package remediation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/errors"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/executor"
	"github.com/sanketsnayak/netheal/internal/model"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/ratelimit"
	"github.com/sanketsnayak/netheal/internal/store"
)

// Engine generates remediation Actions for root-caused incidents and
// executes them under a bounded concurrency cap.
type Engine struct {
	cfg     config.RemediationConfig
	store   store.Store
	metrics *observability.Metrics
	bus     *events.Bus
	log     *zap.Logger
	exec    executor.Executor

	sem chan struct{} // bounds concurrent executions

	mu        sync.Mutex
	cooldowns map[string]time.Time // device -> cooldown expiry
	budgets   map[string]*ratelimit.Bucket // policyID -> rate limit bucket
}

// New creates an Engine. exec is always the registered "simulated"
// executor.
func New(cfg config.RemediationConfig, st store.Store, m *observability.Metrics, bus *events.Bus, log *zap.Logger) *Engine {
	exec, err := executor.Get("simulated")
	if err != nil {
		panic(fmt.Sprintf("remediation: default executor unavailable: %v", err))
	}
	return &Engine{
		cfg:       cfg,
		store:     st,
		metrics:   m,
		bus:       bus,
		log:       log,
		exec:      exec,
		sem:       make(chan struct{}, cfg.MaxConcurrentActions()),
		cooldowns: make(map[string]time.Time),
		budgets:   make(map[string]*ratelimit.Bucket),
	}
}

// Run subscribes to bus.Analyses and generates (then executes) a
// remediation plan for each completed, non-timed-out analysis, until
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-e.bus.Analyses:
			if a.TimedOut {
				continue
			}
			incidentID := a.IncidentID
			go e.Generate(ctx, incidentID)
		}
	}
}

// cooldownUntil reports device's post-action cooldown expiry, if it is
// still within one.
func (e *Engine) cooldownUntil(device string, now time.Time) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	until, ok := e.cooldowns[device]
	if !ok || !now.Before(until) {
		return time.Time{}, false
	}
	return until, true
}

func (e *Engine) startCooldown(device string, now time.Time) {
	e.mu.Lock()
	e.cooldowns[device] = now.Add(e.cfg.CooldownPeriod)
	e.mu.Unlock()
}

// budgetFor returns (creating if necessary) the rate-limit bucket for
// a policy's configured window.
func (e *Engine) budgetFor(p model.Policy) *ratelimit.Bucket {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.budgets[p.PolicyID]
	if !ok {
		capacity := p.RateLimit.MaxExecutions
		window := p.RateLimit.Window
		if capacity <= 0 {
			capacity = 1
		}
		if window <= 0 {
			window = time.Hour
		}
		b = ratelimit.New(capacity, window)
		e.budgets[p.PolicyID] = b
	}
	return b
}

// Generate loads incidentID, selects a matching policy, and produces
// one Action per referenced template. No-op if no policy matches or the
// incident has no root cause yet; if the target device is in cooldown,
// the actions are scheduled for the cooldown expiry.
func (e *Engine) Generate(ctx context.Context, incidentID string) {
	incident, err := e.store.GetIncident(incidentID)
	if err != nil || incident == nil {
		return
	}
	if incident.FinalRootCause == "" {
		return
	}

	alert := e.primaryAlert(*incident)
	if alert == nil {
		return
	}
	device, _ := e.store.GetDevice(alert.Device)
	if device == nil {
		return
	}

	now := time.Now().UTC()
	scheduledFor := now
	if until, ok := e.cooldownUntil(device.Hostname, now); ok {
		scheduledFor = until
		e.log.Info("remediation: "+errors.ErrCooldown.Error()+", deferring action",
			zap.String("device", device.Hostname), zap.Time("scheduled_for", scheduledFor))
	}

	policies, err := e.store.ListPolicies()
	if err != nil {
		e.log.Warn("remediation: list policies failed", zap.Error(err))
		return
	}

	condCtx := ConditionContext{Incident: *incident, Alert: *alert, Device: *device}
	policy, ok := SelectPolicy(policies, condCtx, now, func(p model.Policy) bool {
		return e.budgetFor(p).Allow()
	})
	if !ok {
		e.log.Debug("remediation: no policy matched", zap.String("incident_id", incidentID))
		return
	}

	for _, ref := range policy.ActionTemplates {
		e.generateAction(*policy, ref, *incident, *alert, *device, now, scheduledFor)
	}
}

func (e *Engine) primaryAlert(incident model.Incident) *model.Alert {
	id := incident.PrimaryAlert
	if id == "" && len(incident.Alerts) > 0 {
		id = incident.Alerts[0]
	}
	if id == "" {
		return nil
	}
	a, err := e.store.GetAlert(id)
	if err != nil {
		return nil
	}
	return a
}

// generateAction builds, persists, and (if eligible) queues a single
// Action instantiating one of policy's referenced templates. scheduledFor
// is now unless the target device is in cooldown, in which case it is
// the cooldown expiry and execution is deferred until then.
func (e *Engine) generateAction(policy model.Policy, ref model.ActionTemplateRef, incident model.Incident, alert model.Alert, device model.Device, now, scheduledFor time.Time) {
	tmpl, ok := Template(ref.TemplateName)
	if !ok {
		e.log.Warn("remediation: unknown action template", zap.String("template", ref.TemplateName))
		return
	}

	method, methodOK := selectMethod(tmpl, device.Capabilities)
	params := buildParameters(alert)
	preChecks, commands, verifications := buildSteps(tmpl, params)
	rollback := buildRollback(tmpl, params, e.cfg.RollbackEnabled)

	riskLevel := tmpl.RiskLevel
	if ref.RiskLevel != "" {
		riskLevel = ref.RiskLevel
	}

	seq, err := e.store.NextSequence("ACT", now)
	if err != nil {
		e.log.Warn("remediation: sequence allocation failed", zap.Error(err))
		return
	}

	action := model.Action{
		ActionID:          model.NewSequencedID("ACT", now, seq),
		IncidentID:        incident.IncidentID,
		TargetDevice:      device.Hostname,
		Type:              tmpl.Name,
		Method:            method,
		RiskLevel:         riskLevel,
		PreChecks:         preChecks,
		ActionSteps:       commands,
		VerificationSteps: verifications,
		RollbackPlan:      rollback,
		Status:            model.ActionDraft,
		ScheduledFor:      scheduledFor,
		CreatedAt:         now,
		UpdatedAt:         now,
		Parameters:        params,
	}

	requiresApproval := ref.RequiresApproval || tmpl.RequiresApproval
	autoApprove := e.cfg.AutoApprovalEnabled && tmpl.AutoApprovable()
	if requiresApproval && !autoApprove {
		action.Status = model.ActionPendingApproval
	} else {
		action.Status = model.ActionQueued
	}

	if err := e.store.PutAction(action); err != nil {
		e.log.Warn("remediation: persist action failed", zap.Error(err))
		return
	}
	_ = e.store.AppendAudit(store.AuditEntry{
		Timestamp: now, Actor: "system", Entity: "action", EntityID: action.ActionID,
		Event: "created", Detail: fmt.Sprintf("template=%s device=%s status=%s", action.Type, action.TargetDevice, action.Status),
	})

	if action.Status == model.ActionPendingApproval {
		e.bus.PublishAction(events.ActionEvent{ActionID: action.ActionID, IncidentID: incident.IncidentID, Outcome: events.ActionApprovalRequired, At: now})
		return
	}

	e.bus.PublishAction(events.ActionEvent{ActionID: action.ActionID, IncidentID: incident.IncidentID, Outcome: events.ActionGenerated, At: now})
	_ = methodOK // surfaced via the transport_available safety check, not fatal here

	if delay := scheduledFor.Sub(now); delay > 0 {
		go func(id string, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			<-timer.C
			e.runQueued(context.Background(), id)
		}(action.ActionID, delay)
		return
	}
	go e.runQueued(context.Background(), action.ActionID)
}

// Approve transitions a pending_approval action to queued and starts
// execution. Used by the operator control surface.
func (e *Engine) Approve(ctx context.Context, actionID string) error {
	a, err := e.store.GetAction(actionID)
	if err != nil || a == nil {
		return fmt.Errorf("remediation: action %q: %w", actionID, errors.ErrNotFound)
	}
	if a.Status != model.ActionPendingApproval {
		return fmt.Errorf("remediation: action %q is not pending approval (status=%s)", actionID, a.Status)
	}
	a.Status = model.ActionApproved
	a.UpdatedAt = time.Now().UTC()
	if err := e.store.PutAction(*a); err != nil {
		return err
	}
	a.Status = model.ActionQueued
	if err := e.store.PutAction(*a); err != nil {
		return err
	}
	go e.runQueued(ctx, actionID)
	return nil
}

// Reject cancels a pending_approval action.
func (e *Engine) Reject(actionID, reason string) error {
	a, err := e.store.GetAction(actionID)
	if err != nil || a == nil {
		return fmt.Errorf("remediation: action %q: %w", actionID, errors.ErrNotFound)
	}
	if a.Status != model.ActionPendingApproval {
		return fmt.Errorf("remediation: action %q is not pending approval (status=%s)", actionID, a.Status)
	}
	a.Status = model.ActionCancelled
	a.ErrorMessage = reason
	a.UpdatedAt = time.Now().UTC()
	return e.store.PutAction(*a)
}

// runQueued acquires a concurrency slot and executes actionID,
// respecting cfg.MaxConcurrentActions.
func (e *Engine) runQueued(ctx context.Context, actionID string) {
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	e.metrics.RemediationActiveActions.Inc()
	defer func() {
		<-e.sem
		e.metrics.RemediationActiveActions.Dec()
	}()

	e.execute(ctx, actionID)
}

// execute runs an action's safety checks, steps, verification, and
// (on failure) rollback, bounded by cfg.ExecutionTimeout.
func (e *Engine) execute(ctx context.Context, actionID string) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.ExecutionTimeout)
	defer cancel()

	a, err := e.store.GetAction(actionID)
	if err != nil || a == nil {
		return
	}
	device, _ := e.store.GetDevice(a.TargetDevice)
	active, _ := e.store.ListActiveActionsForDevice(a.TargetDevice)
	active = excludeSelf(active, actionID)

	methodOK := false
	if tmpl, ok := Template(a.Type); ok && device != nil {
		_, methodOK = selectMethod(tmpl, device.Capabilities)
	}

	in := safetyInput{
		device:        device,
		template:      firstTemplateOrZero(a.Type),
		methodOK:      methodOK,
		activeActions: active,
		dryRun:        e.cfg.DryRun,
		now:           time.Now().UTC(),
	}
	if ok, reason := runSafetyChecks(in); !ok {
		e.fail(*a, fmt.Errorf("%w: %s", errors.ErrSafetyCheck, reason).Error())
		e.metrics.RemediationSafetyCheckFailuresTotal.WithLabelValues(reason).Inc()
		return
	}

	a.Status = model.ActionExecuting
	a.UpdatedAt = time.Now().UTC()
	_ = e.store.PutAction(*a)

	if ok := e.runSteps(timeoutCtx, a, a.PreChecks); !ok {
		e.fail(*a, "pre-check failed")
		return
	}
	if ok := e.runSteps(timeoutCtx, a, a.ActionSteps); !ok {
		e.retryOrFail(a, "command execution failed")
		return
	}
	e.runSteps(timeoutCtx, a, a.VerificationSteps)
	for _, s := range a.VerificationSteps {
		if s.Status != model.StepCompleted {
			e.handleFailure(timeoutCtx, a, errors.ErrVerificationFailed.Error())
			return
		}
	}

	e.succeed(*a)
}

func excludeSelf(actions []model.Action, id string) []model.Action {
	out := actions[:0:0]
	for _, a := range actions {
		if a.ActionID != id {
			out = append(out, a)
		}
	}
	return out
}

func firstTemplateOrZero(name string) ActionTemplate {
	t, _ := Template(name)
	return t
}

// runSteps executes each step via the configured executor in order,
// stopping at the first critical step failure. Returns false if
// execution should be treated as a failure.
func (e *Engine) runSteps(ctx context.Context, a *model.Action, steps []model.ActionStep) bool {
	ok := true
	for i := range steps {
		steps[i].Status = model.StepExecuting
		res, err := e.exec.Run(ctx, a.TargetDevice, a.Method, steps[i])
		if err != nil || !res.Success {
			steps[i].Status = model.StepFailed
			steps[i].Result = res.Output
			if err != nil {
				steps[i].Error = err.Error()
			} else if res.Err != nil {
				steps[i].Error = res.Err.Error()
			}
			if steps[i].Critical {
				ok = false
				break
			}
			continue
		}
		steps[i].Status = model.StepCompleted
		steps[i].Result = res.Output
	}
	_ = e.store.PutAction(*a)
	return ok
}

// handleFailure decides between rollback, retry, and terminal failure
// for a failed verification pass.
func (e *Engine) handleFailure(ctx context.Context, a *model.Action, reason string) {
	if e.cfg.RollbackEnabled && a.RollbackPlan.Automatic && len(a.RollbackPlan.Steps) > 0 {
		e.rollback(ctx, a)
		return
	}
	e.retryOrFail(a, reason)
}

func (e *Engine) rollback(ctx context.Context, a *model.Action) {
	ok := true
	for i := range a.RollbackPlan.Steps {
		res, err := e.exec.Run(ctx, a.TargetDevice, a.Method, a.RollbackPlan.Steps[i])
		if err != nil || !res.Success {
			a.RollbackPlan.Steps[i].Status = model.StepFailed
			ok = false
			break
		}
		a.RollbackPlan.Steps[i].Status = model.StepCompleted
	}
	a.RollbackPlan.Executed = true
	a.RollbackPlan.Success = ok
	if ok {
		a.Status = model.ActionRolledBack
	} else {
		a.Status = model.ActionRollbackFailed
	}
	e.finalize(*a)
}

func (e *Engine) retryOrFail(a *model.Action, reason string) {
	if a.RetryCount < e.cfg.MaxRetries {
		a.RetryCount++
		a.Status = model.ActionQueued
		a.ErrorMessage = reason
		a.UpdatedAt = time.Now().UTC()
		_ = e.store.PutAction(*a)
		e.metrics.RemediationRetriesTotal.Inc()
		go func(id string, delay time.Duration) {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			<-timer.C
			e.runQueued(context.Background(), id)
		}(a.ActionID, e.cfg.RetryDelay)
		return
	}
	e.fail(*a, reason+" (retries exhausted)")
}

func (e *Engine) succeed(a model.Action) {
	a.Status = model.ActionCompleted
	e.finalize(a)
}

func (e *Engine) fail(a model.Action, reason string) {
	a.Status = model.ActionFailed
	a.ErrorMessage = reason
	e.finalize(a)
}

// finalize persists a's terminal state, starts the device's cooldown,
// records metrics/audit, and publishes action_completed.
func (e *Engine) finalize(a model.Action) {
	now := time.Now().UTC()
	a.UpdatedAt = now
	if err := e.store.PutAction(a); err != nil {
		e.log.Warn("remediation: finalize persist failed", zap.Error(err))
	}
	e.startCooldown(a.TargetDevice, now)
	e.metrics.RemediationActionsTotal.WithLabelValues(string(a.Status)).Inc()
	_ = e.store.AppendAudit(store.AuditEntry{
		Timestamp: now, Actor: "system", Entity: "action", EntityID: a.ActionID,
		Event: "status_changed", Detail: fmt.Sprintf("status=%s error=%q", a.Status, a.ErrorMessage),
	})
	e.bus.PublishAction(events.ActionEvent{ActionID: a.ActionID, IncidentID: a.IncidentID, Outcome: events.ActionCompleted, At: now})
}
