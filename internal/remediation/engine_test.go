package remediation

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

func newTestEngine(t *testing.T, cfg config.RemediationConfig) (*Engine, store.Store, *events.Bus) {
	t.Helper()
	st := store.NewMemStore()
	bus := events.NewBus(16)
	m := observability.NewMetrics()
	e := New(cfg, st, m, bus, zap.NewNop())
	return e, st, bus
}

func seedIncident(t *testing.T, st store.Store, device model.Device, alertType string) model.Incident {
	t.Helper()
	now := time.Now().UTC()
	if err := st.PutDevice(device); err != nil {
		t.Fatal(err)
	}
	alert := model.Alert{
		AlertID: "ALT-1", Device: device.Hostname, Type: alertType,
		Category: model.CategoryNetwork, Severity: model.SeverityMajor,
		Status: model.AlertOpen, FirstOccurrence: now, LastOccurrence: now, CreatedAt: now,
		RawMessage: "GigabitEthernet0/1 down",
	}
	if err := st.PutAlert(alert); err != nil {
		t.Fatal(err)
	}
	incident := model.Incident{
		IncidentID: "INC-20260101-0001", Alerts: []string{alert.AlertID}, PrimaryAlert: alert.AlertID,
		AffectedDevices: []string{device.Hostname}, Severity: model.SeverityMajor, Priority: model.P2,
		State: model.IncidentInvestigating, FirstAlertTime: now, CreatedAt: now, UpdatedAt: now,
		FinalRootCause: "interface failure cascade", RootCauseConfidence: 0.8,
	}
	if err := st.PutIncident(incident); err != nil {
		t.Fatal(err)
	}
	return incident
}

func autoApprovablePolicy() model.Policy {
	return model.Policy{
		PolicyID: "POL-1", Name: "auto-enable", Enabled: true, Status: model.PolicyActive, Priority: 1,
		Triggers: []model.Condition{{Field: "alert.type", Operator: model.OpEquals, Value: "interface_down"}},
		ActionTemplates: []model.ActionTemplateRef{
			{TemplateName: "enable_interface"},
		},
		RateLimit: model.RateLimit{MaxExecutions: 10, Window: time.Hour},
	}
}

func TestGenerate_AutoApprovedActionExecutesToCompletion(t *testing.T) {
	cfg := config.Defaults().Remediation
	cfg.AutoApprovalEnabled = true
	cfg.RetryDelay = time.Second
	e, st, bus := newTestEngine(t, cfg)

	device := model.Device{
		Hostname: "sw1", Status: model.DeviceUp, AutomationEnabled: true,
		Capabilities: model.Capabilities{NETCONF: true},
	}
	incident := seedIncident(t, st, device, "interface_down")
	if err := st.PutPolicy(autoApprovablePolicy()); err != nil {
		t.Fatal(err)
	}

	e.Generate(context.Background(), incident.IncidentID)

	// Each simulated step sleeps step.Timeout/10 (3s at the default
	// 30s step timeout); enable_interface has 3 steps end to end, plus
	// headroom for a possible single retry after the 1s RetryDelay.
	deadline := time.After(20 * time.Second)
	for {
		actions, _ := st.ListActionsForIncident(incident.IncidentID)
		if len(actions) == 1 && actions[0].Status.IsTerminal() {
			if actions[0].Status != model.ActionCompleted && actions[0].Status != model.ActionFailed {
				t.Fatalf("unexpected terminal status %s", actions[0].Status)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for action to reach a terminal state, got %+v", actions)
		case <-time.After(50 * time.Millisecond):
		}
	}

	select {
	case <-bus.Actions:
	default:
		t.Error("expected at least one action event published")
	}
}

func TestGenerate_RequiresApprovalWhenNotAutoApprovable(t *testing.T) {
	cfg := config.Defaults().Remediation
	e, st, _ := newTestEngine(t, cfg)

	device := model.Device{Hostname: "sw1", Status: model.DeviceUp, AutomationEnabled: true, Capabilities: model.Capabilities{SSH: true}}
	incident := seedIncident(t, st, device, "bgp_peer_down")

	policy := model.Policy{
		PolicyID: "POL-2", Enabled: true, Status: model.PolicyActive,
		Triggers:        []model.Condition{{Field: "alert.type", Operator: model.OpEquals, Value: "bgp_peer_down"}},
		ActionTemplates: []model.ActionTemplateRef{{TemplateName: "restart_bgp_session"}},
		RateLimit:       model.RateLimit{MaxExecutions: 5, Window: time.Hour},
	}
	if err := st.PutPolicy(policy); err != nil {
		t.Fatal(err)
	}

	e.Generate(context.Background(), incident.IncidentID)

	actions, _ := st.ListActionsForIncident(incident.IncidentID)
	if len(actions) != 1 {
		t.Fatalf("expected exactly one generated action, got %d", len(actions))
	}
	if actions[0].Status != model.ActionPendingApproval {
		t.Errorf("expected pending_approval, got %s", actions[0].Status)
	}
}

func TestGenerate_DeviceInCooldownSchedulesDeferredAction(t *testing.T) {
	cfg := config.Defaults().Remediation
	cfg.CooldownPeriod = time.Hour
	e, st, _ := newTestEngine(t, cfg)

	device := model.Device{Hostname: "sw1", Status: model.DeviceUp, AutomationEnabled: true, Capabilities: model.Capabilities{NETCONF: true}}
	incident := seedIncident(t, st, device, "interface_down")
	if err := st.PutPolicy(autoApprovablePolicy()); err != nil {
		t.Fatal(err)
	}

	before := time.Now().UTC()
	e.startCooldown(device.Hostname, before)
	e.Generate(context.Background(), incident.IncidentID)

	actions, _ := st.ListActionsForIncident(incident.IncidentID)
	if len(actions) != 1 {
		t.Fatalf("expected exactly one action generated for a cooldown device, got %d", len(actions))
	}
	a := actions[0]
	if !a.ScheduledFor.After(before) {
		t.Errorf("expected ScheduledFor to be deferred past %v, got %v", before, a.ScheduledFor)
	}
	wantNotBefore := before.Add(cfg.CooldownPeriod - time.Second)
	if a.ScheduledFor.Before(wantNotBefore) {
		t.Errorf("expected ScheduledFor to reflect the remaining cooldown (>= %v), got %v", wantNotBefore, a.ScheduledFor)
	}
}

func TestApproveThenReject(t *testing.T) {
	cfg := config.Defaults().Remediation
	e, st, _ := newTestEngine(t, cfg)

	now := time.Now().UTC()
	action := model.Action{ActionID: "ACT-1", Status: model.ActionPendingApproval, TargetDevice: "sw1", CreatedAt: now, UpdatedAt: now}
	if err := st.PutAction(action); err != nil {
		t.Fatal(err)
	}

	if err := e.Reject("ACT-1", "operator declined"); err != nil {
		t.Fatal(err)
	}
	got, _ := st.GetAction("ACT-1")
	if got.Status != model.ActionCancelled {
		t.Errorf("expected cancelled after reject, got %s", got.Status)
	}

	action2 := model.Action{ActionID: "ACT-2", Status: model.ActionPendingApproval, TargetDevice: "sw2", CreatedAt: now, UpdatedAt: now}
	if err := st.PutAction(action2); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Approve(ctx, "ACT-2"); err != nil {
		t.Fatal(err)
	}
}
