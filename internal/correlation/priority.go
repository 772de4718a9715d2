package correlation

import "github.com/sanketsnayak/netheal/internal/model"

// priorityFor maps severity plus member count to an incident Priority
// (spec §4.2 priority table): critical→p1; major→p2 (p1 if ≥20
// alerts); minor→p3 (p2 if ≥10); warning/info→p4.
func priorityFor(sev model.Severity, memberCount int) model.Priority {
	switch sev {
	case model.SeverityCritical:
		return model.P1
	case model.SeverityMajor:
		if memberCount >= 20 {
			return model.P1
		}
		return model.P2
	case model.SeverityMinor:
		if memberCount >= 10 {
			return model.P2
		}
		return model.P3
	default: // warning, info
		return model.P4
	}
}
