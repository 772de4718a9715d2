package remediation

import (
	"testing"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

func baseSafetyInput() safetyInput {
	return safetyInput{
		device: &model.Device{
			Hostname:          "sw1",
			Status:            model.DeviceUp,
			AutomationEnabled: true,
		},
		template: ActionTemplate{RiskLevel: model.RiskLow},
		methodOK: true,
		now:      time.Now(),
	}
}

func TestRunSafetyChecks_AllPass(t *testing.T) {
	if ok, reason := runSafetyChecks(baseSafetyInput()); !ok {
		t.Errorf("expected all checks to pass, failed at %q", reason)
	}
}

func TestRunSafetyChecks_DeviceDown(t *testing.T) {
	in := baseSafetyInput()
	in.device.Status = model.DeviceDown
	ok, reason := runSafetyChecks(in)
	if ok || reason != "device_up" {
		t.Errorf("expected device_up failure, got ok=%v reason=%q", ok, reason)
	}
}

func TestRunSafetyChecks_AutomationDisabled(t *testing.T) {
	in := baseSafetyInput()
	in.device.AutomationEnabled = false
	ok, reason := runSafetyChecks(in)
	if ok || reason != "automation_enabled" {
		t.Errorf("expected automation_enabled failure, got ok=%v reason=%q", ok, reason)
	}
}

func TestRunSafetyChecks_HighRiskRequiresMaintenanceWindow(t *testing.T) {
	in := baseSafetyInput()
	in.template.RiskLevel = model.RiskHigh

	ok, reason := runSafetyChecks(in)
	if ok || reason != "maintenance_window" {
		t.Errorf("expected maintenance_window failure for high risk with no window, got ok=%v reason=%q", ok, reason)
	}

	in.device.MaintenanceWindow = &model.MaintenanceWindow{
		Days:  []time.Weekday{in.now.Weekday()},
		Start: 0,
		End:   24 * time.Hour,
	}
	if ok, reason := runSafetyChecks(in); !ok {
		t.Errorf("expected pass once inside maintenance window, failed at %q", reason)
	}
}

func TestRunSafetyChecks_DryRunBlocks(t *testing.T) {
	in := baseSafetyInput()
	in.dryRun = true
	ok, reason := runSafetyChecks(in)
	if ok || reason != "not_dry_run" {
		t.Errorf("expected not_dry_run failure, got ok=%v reason=%q", ok, reason)
	}
}

func TestRunSafetyChecks_ConcurrentActionBlocks(t *testing.T) {
	in := baseSafetyInput()
	in.activeActions = []model.Action{{ActionID: "ACT-1", Status: model.ActionExecuting}}
	ok, reason := runSafetyChecks(in)
	if ok || reason != "no_concurrent_action" {
		t.Errorf("expected no_concurrent_action failure, got ok=%v reason=%q", ok, reason)
	}
}
