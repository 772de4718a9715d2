package remediation

import (
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// safetyInput bundles everything a safety check needs to evaluate,
// computed once by the engine before the ordered check sequence runs.
type safetyInput struct {
	device        *model.Device
	template      ActionTemplate
	methodOK      bool
	activeActions []model.Action
	dryRun        bool
	now           time.Time
}

// safetyCheck is one named, ordered gate. All must pass for an action
// to proceed to execution (spec §4.4 "Safety checks").
type safetyCheck struct {
	name string
	fn   func(safetyInput) bool
}

var safetyChecks = []safetyCheck{
	{"device_exists", func(in safetyInput) bool { return in.device != nil }},
	{"device_up", func(in safetyInput) bool { return in.device != nil && in.device.Status == model.DeviceUp }},
	{"maintenance_window", checkMaintenanceWindow},
	{"automation_enabled", func(in safetyInput) bool { return in.device != nil && in.device.AutomationEnabled }},
	{"transport_available", func(in safetyInput) bool { return in.methodOK }},
	{"no_concurrent_action", func(in safetyInput) bool { return len(in.activeActions) == 0 }},
	{"not_dry_run", func(in safetyInput) bool { return !in.dryRun }},
}

// checkMaintenanceWindow requires a high/critical-risk template's
// target device to currently be inside its maintenance window; lower
// risk templates are unrestricted.
func checkMaintenanceWindow(in safetyInput) bool {
	if in.template.RiskLevel != model.RiskHigh && in.template.RiskLevel != model.RiskCritical {
		return true
	}
	if in.device == nil || in.device.MaintenanceWindow == nil {
		return false
	}
	return in.device.MaintenanceWindow.Contains(in.now)
}

// runSafetyChecks evaluates each check in order, stopping at the first
// failure. Returns (true, "") if every check passes, else (false,
// <failing check name>).
func runSafetyChecks(in safetyInput) (bool, string) {
	for _, c := range safetyChecks {
		if !c.fn(in) {
			return false, c.name
		}
	}
	return true, ""
}
