package rca

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
	"github.com/sanketsnayak/netheal/internal/testutil"
)

func TestEngine_AnalyzePersistsRankedResults(t *testing.T) {
	st := store.NewMemStore()
	now := time.Now().UTC()

	a1 := model.Alert{AlertID: "A1", Device: "r1", Type: "interface_down", Severity: model.SeverityCritical, FirstOccurrence: now, LastOccurrence: now}
	a2 := model.Alert{AlertID: "A2", Device: "r1", Type: "bgp_peer_down", Severity: model.SeverityMajor, FirstOccurrence: now.Add(5 * time.Second), LastOccurrence: now.Add(5 * time.Second)}
	st.PutAlert(a1)
	st.PutAlert(a2)

	incident := model.Incident{
		IncidentID:      "INC-20260730-0001",
		Alerts:          []string{"A1", "A2"},
		AffectedDevices: []string{"r1"},
		State:           model.IncidentOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	st.PutIncident(incident)

	cfg := config.Defaults().RCA
	eng := New(cfg, st, observability.NewMetrics(), events.NewBus(4), zap.NewNop())

	eng.analyze(context.Background(), incident.IncidentID)

	got, err := st.GetIncident(incident.IncidentID)
	if err != nil || got == nil {
		t.Fatalf("expected incident to be retrievable: %v", err)
	}
	if got.FinalRootCause == "" {
		t.Fatal("expected a final root cause to be set")
	}
	if len(got.RCAResults) == 0 {
		t.Fatal("expected at least one RCA result")
	}
	if got.RootCauseConfidence < cfg.MinConfidenceThreshold {
		t.Errorf("expected top confidence >= threshold, got %v", got.RootCauseConfidence)
	}
}

func TestEngine_TopologyDependencyBoostsMultiDeviceIncident(t *testing.T) {
	st := store.NewMemStore()
	now := time.Now().UTC()

	if err := st.PutTopology(*testutil.SampleTopology()); err != nil {
		t.Fatal(err)
	}

	a1 := model.Alert{AlertID: "A1", Device: "r1", Type: "interface_down", Severity: model.SeverityCritical, FirstOccurrence: now, LastOccurrence: now}
	a2 := model.Alert{AlertID: "A2", Device: "r2", Type: "interface_down", Severity: model.SeverityMajor, FirstOccurrence: now.Add(2 * time.Second), LastOccurrence: now.Add(2 * time.Second)}
	st.PutAlert(a1)
	st.PutAlert(a2)

	incident := model.Incident{
		IncidentID:      "INC-20260730-0003",
		Alerts:          []string{"A1", "A2"},
		AffectedDevices: []string{"r1", "r2"},
		State:           model.IncidentOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	st.PutIncident(incident)

	cfg := config.Defaults().RCA
	eng := New(cfg, st, observability.NewMetrics(), events.NewBus(4), zap.NewNop())
	eng.analyze(context.Background(), incident.IncidentID)

	got, err := st.GetIncident(incident.IncidentID)
	if err != nil || got == nil {
		t.Fatalf("expected incident to be retrievable: %v", err)
	}
	if len(got.RCAResults) == 0 {
		t.Fatal("expected at least one RCA result")
	}

	var sawTopologyAnalyzer bool
	for _, r := range got.RCAResults {
		if r.Analyzer == "topology" {
			sawTopologyAnalyzer = true
		}
	}
	if !sawTopologyAnalyzer {
		t.Errorf("expected topology analyzer to contribute given linked r1/r2, results=%+v", got.RCAResults)
	}
}

func TestEngine_NoAlertsProducesNoResults(t *testing.T) {
	st := store.NewMemStore()
	now := time.Now().UTC()
	incident := model.Incident{IncidentID: "INC-20260730-0002", CreatedAt: now, UpdatedAt: now, State: model.IncidentOpen}
	st.PutIncident(incident)

	cfg := config.Defaults().RCA
	eng := New(cfg, st, observability.NewMetrics(), events.NewBus(4), zap.NewNop())
	eng.analyze(context.Background(), incident.IncidentID)

	got, _ := st.GetIncident(incident.IncidentID)
	if got.FinalRootCause != "" {
		t.Errorf("expected no root cause with no alerts, got %q", got.FinalRootCause)
	}
}
