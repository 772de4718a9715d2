package orchestrator

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/model"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store, *events.Bus, func()) {
	t.Helper()
	st := store.NewMemStore()
	bus := events.NewBus(16)
	m := observability.NewMetrics()
	cfg := config.Defaults().Orchestrator
	cfg.IncidentTimeout = 200 * time.Millisecond
	cfg.AuditRetention = 100 * time.Millisecond
	e := New(cfg, st, m, bus, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	return e, st, bus, cancel
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestEngine_TracksIncidentThroughSuccess(t *testing.T) {
	e, st, bus, cancel := newTestEngine(t)
	defer cancel()

	now := time.Now().UTC()
	bus.PublishIncident(events.IncidentEvent{IncidentID: "INC-1", Outcome: events.IncidentCreated, At: now})

	waitFor(t, func() bool {
		snap := e.Snapshot()
		return snap.ActivePipelines == 1
	})

	bus.PublishAnalysis(events.AnalysisCompleted{IncidentID: "INC-1", TopCause: "x", Confidence: 0.9, At: now})

	action := model.Action{ActionID: "ACT-1", IncidentID: "INC-1", Status: model.ActionCompleted}
	if err := st.PutAction(action); err != nil {
		t.Fatal(err)
	}
	bus.PublishAction(events.ActionEvent{ActionID: "ACT-1", IncidentID: "INC-1", Outcome: events.ActionGenerated, At: now})
	bus.PublishAction(events.ActionEvent{ActionID: "ACT-1", IncidentID: "INC-1", Outcome: events.ActionCompleted, At: now})

	waitFor(t, func() bool {
		snap := e.Snapshot()
		return snap.SuccessCount == 1
	})

	snap := e.Snapshot()
	if snap.FailureCount != 0 {
		t.Errorf("expected no failures, got %d", snap.FailureCount)
	}
	if snap.HealingTimeEMASeconds < 0 {
		t.Errorf("expected non-negative healing time EMA, got %f", snap.HealingTimeEMASeconds)
	}
}

func TestEngine_FailsOnActionFailure(t *testing.T) {
	e, st, bus, cancel := newTestEngine(t)
	defer cancel()

	now := time.Now().UTC()
	bus.PublishIncident(events.IncidentEvent{IncidentID: "INC-2", Outcome: events.IncidentCreated, At: now})
	waitFor(t, func() bool { return e.Snapshot().ActivePipelines == 1 })

	bus.PublishAnalysis(events.AnalysisCompleted{IncidentID: "INC-2", TopCause: "y", Confidence: 0.7, At: now})

	action := model.Action{ActionID: "ACT-2", IncidentID: "INC-2", Status: model.ActionFailed}
	if err := st.PutAction(action); err != nil {
		t.Fatal(err)
	}
	bus.PublishAction(events.ActionEvent{ActionID: "ACT-2", IncidentID: "INC-2", Outcome: events.ActionCompleted, At: now})

	waitFor(t, func() bool { return e.Snapshot().FailureCount == 1 })
}

func TestEngine_IncidentTimeoutForcesFailure(t *testing.T) {
	e, _, bus, cancel := newTestEngine(t)
	defer cancel()

	bus.PublishIncident(events.IncidentEvent{IncidentID: "INC-3", Outcome: events.IncidentCreated, At: time.Now().UTC()})
	waitFor(t, func() bool { return e.Snapshot().ActivePipelines == 1 })

	// Entry never advances past rca; incident_timeout is 200ms in this
	// test's config, so the sweep should force it to failed.
	waitFor(t, func() bool { return e.Snapshot().FailureCount >= 1 })
}

func TestEngine_EvictsAfterAuditRetention(t *testing.T) {
	e, st, bus, cancel := newTestEngine(t)
	defer cancel()

	now := time.Now().UTC()
	bus.PublishIncident(events.IncidentEvent{IncidentID: "INC-4", Outcome: events.IncidentCreated, At: now})
	waitFor(t, func() bool { return e.Snapshot().ActivePipelines == 1 })

	bus.PublishAnalysis(events.AnalysisCompleted{IncidentID: "INC-4", TopCause: "z", Confidence: 0.9, At: now})
	action := model.Action{ActionID: "ACT-4", IncidentID: "INC-4", Status: model.ActionCompleted}
	if err := st.PutAction(action); err != nil {
		t.Fatal(err)
	}
	bus.PublishAction(events.ActionEvent{ActionID: "ACT-4", IncidentID: "INC-4", Outcome: events.ActionGenerated, At: now})
	bus.PublishAction(events.ActionEvent{ActionID: "ACT-4", IncidentID: "INC-4", Outcome: events.ActionCompleted, At: now})

	waitFor(t, func() bool { return e.Snapshot().SuccessCount == 1 })
	// audit_retention is 100ms; after that the next sweep should evict.
	waitFor(t, func() bool { return e.Snapshot().ActivePipelines == 0 })
}

func TestHealingTimeEMA_SeedsThenBlends(t *testing.T) {
	ema := NewHealingTimeEMA(0.5)
	if v := ema.Update(100); v != 100 {
		t.Errorf("expected first update to seed directly, got %f", v)
	}
	if v := ema.Update(200); v != 150 {
		t.Errorf("expected 0.5*100+0.5*200=150, got %f", v)
	}
}
