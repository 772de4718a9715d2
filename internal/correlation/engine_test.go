package correlation

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sanketsnayak/netheal/internal/config"
	"github.com/sanketsnayak/netheal/internal/events"
	"github.com/sanketsnayak/netheal/internal/model"
	"github.com/sanketsnayak/netheal/internal/observability"
	"github.com/sanketsnayak/netheal/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st := store.NewMemStore()
	cfg := config.Defaults().Correlation
	eng := New(cfg, st, observability.NewMetrics(), events.NewBus(16), zap.NewNop())
	return eng, st
}

func TestEngine_CreatesIncidentWhenConfidentRuleMatches(t *testing.T) {
	eng, st := newTestEngine(t)
	now := time.Now().UTC()

	correlated := model.Alert{
		AlertID:         "ALT-1",
		Device:          "r1",
		Type:            "bgp_peer_down",
		Severity:        model.SeverityMajor,
		Status:          model.AlertOpen,
		FirstOccurrence: now.Add(-10 * time.Second),
		LastOccurrence:  now.Add(-10 * time.Second),
		OccurrenceCount: 1,
		CreatedAt:       now.Add(-10 * time.Second),
	}
	if err := st.PutAlert(correlated); err != nil {
		t.Fatal(err)
	}

	trigger := model.Alert{
		AlertID:         "ALT-2",
		Device:          "r1",
		Type:            "interface_down",
		Severity:        model.SeverityCritical,
		Status:          model.AlertOpen,
		FirstOccurrence: now,
		LastOccurrence:  now,
		OccurrenceCount: 1,
		CreatedAt:       now,
	}
	if err := st.PutAlert(trigger); err != nil {
		t.Fatal(err)
	}

	eng.processAlert("ALT-2")

	got, err := st.GetAlert("ALT-2")
	if err != nil {
		t.Fatal(err)
	}
	if got.IncidentID == "" {
		t.Fatal("expected alert to be assigned an incident")
	}

	incident, err := st.GetIncident(got.IncidentID)
	if err != nil || incident == nil {
		t.Fatalf("expected incident to exist: %v", err)
	}
	if incident.Severity != model.SeverityCritical {
		t.Errorf("expected incident severity critical, got %v", incident.Severity)
	}
	if !incident.HasAlert("ALT-1") || !incident.HasAlert("ALT-2") {
		t.Errorf("expected both alerts as members, got %v", incident.Alerts)
	}
}

func TestEngine_DedupSuppressesWithinWindow(t *testing.T) {
	eng, st := newTestEngine(t)
	now := time.Now().UTC()

	parent := model.Alert{
		AlertID:         "ALT-1",
		Device:          "r1",
		Type:            "high_cpu",
		Status:          model.AlertOpen,
		FirstOccurrence: now.Add(-5 * time.Second),
		LastOccurrence:  now.Add(-5 * time.Second),
		OccurrenceCount: 1,
	}
	st.PutAlert(parent)

	dup := model.Alert{
		AlertID:         "ALT-2",
		Device:          "r1",
		Type:            "high_cpu",
		Status:          model.AlertOpen,
		FirstOccurrence: now,
		LastOccurrence:  now,
		OccurrenceCount: 1,
	}
	st.PutAlert(dup)

	eng.processAlert("ALT-2")

	got, _ := st.GetAlert("ALT-2")
	if got.Status != model.AlertSuppressed {
		t.Fatalf("expected suppressed, got %v", got.Status)
	}
	if got.ParentAlert != "ALT-1" {
		t.Errorf("expected parent ALT-1, got %q", got.ParentAlert)
	}

	gotParent, _ := st.GetAlert("ALT-1")
	if gotParent.OccurrenceCount != 2 {
		t.Errorf("expected parent occurrence count bumped to 2, got %d", gotParent.OccurrenceCount)
	}
}

func TestEngine_NoRuleFallbackAttaches(t *testing.T) {
	eng, st := newTestEngine(t)
	now := time.Now().UTC()

	existing := model.Incident{
		IncidentID: "INC-20260730-0001",
		State:      model.IncidentOpen,
		Severity:   model.SeverityMinor,
		UpdatedAt:  now.Add(-time.Minute),
		CreatedAt:  now.Add(-time.Minute),
	}
	existing.AddAlert("ALT-0", "r1")
	st.PutIncident(existing)

	alert := model.Alert{
		AlertID:         "ALT-9",
		Device:          "r1",
		Type:            "system_message", // matches no baseline rule
		Severity:        model.SeverityInfo,
		Status:          model.AlertOpen,
		FirstOccurrence: now,
		LastOccurrence:  now,
	}
	st.PutAlert(alert)

	eng.processAlert("ALT-9")

	got, _ := st.GetAlert("ALT-9")
	if got.IncidentID != "INC-20260730-0001" {
		t.Fatalf("expected fallback attach, got incident_id=%q", got.IncidentID)
	}
}
