package remediation

import (
	"fmt"
	"strings"

	"github.com/sanketsnayak/netheal/internal/model"
)

// ConditionContext is the named, dotted-field-path view of an incident
// a policy's trigger/exclude conditions evaluate against. Built
// explicitly per field rather than via reflection, since the field set
// is small and fixed (spec §9: generalize away from reflection).
type ConditionContext struct {
	Incident model.Incident
	Alert    model.Alert // primary alert
	Device   model.Device
}

// field looks up a dotted path like "alert.type" or "device.criticality".
// Returns (value, true) if the path is known, else (nil, false).
func (c ConditionContext) field(path string) (any, bool) {
	parts := strings.SplitN(path, ".", 2)
	if len(parts) != 2 {
		return nil, false
	}
	root, leaf := parts[0], parts[1]

	switch root {
	case "alert":
		return alertField(c.Alert, leaf)
	case "device":
		return deviceField(c.Device, leaf)
	case "incident":
		return incidentField(c.Incident, leaf)
	default:
		return nil, false
	}
}

func alertField(a model.Alert, leaf string) (any, bool) {
	switch leaf {
	case "type":
		return a.Type, true
	case "category":
		return string(a.Category), true
	case "severity":
		return string(a.Severity), true
	case "status":
		return string(a.Status), true
	case "device":
		return a.Device, true
	case "occurrence_count":
		return a.OccurrenceCount, true
	default:
		return nil, false
	}
}

func deviceField(d model.Device, leaf string) (any, bool) {
	switch leaf {
	case "hostname":
		return d.Hostname, true
	case "vendor":
		return d.Vendor, true
	case "model":
		return d.Model, true
	case "os":
		return d.OS, true
	case "status":
		return string(d.Status), true
	case "site":
		return d.Site, true
	case "criticality":
		return d.Criticality, true
	case "automation_enabled":
		return d.AutomationEnabled, true
	case "netconf_enabled":
		return d.Capabilities.NETCONF, true
	case "ssh_enabled":
		return d.Capabilities.SSH, true
	default:
		return nil, false
	}
}

func incidentField(i model.Incident, leaf string) (any, bool) {
	switch leaf {
	case "severity":
		return string(i.Severity), true
	case "priority":
		return string(i.Priority), true
	case "state":
		return string(i.State), true
	case "final_root_cause":
		return i.FinalRootCause, true
	case "root_cause_confidence":
		return i.RootCauseConfidence, true
	case "affected_device_count":
		return len(i.AffectedDevices), true
	case "alert_count":
		return len(i.Alerts), true
	default:
		return nil, false
	}
}

// Evaluate reports whether cond holds against ctx. Unknown fields
// evaluate to false (never to a matching policy trigger).
func Evaluate(ctx ConditionContext, cond model.Condition) bool {
	actual, ok := ctx.field(cond.Field)
	if !ok {
		return false
	}
	return compare(actual, cond.Operator, cond.Value)
}

func compare(actual any, op model.ConditionOperator, want any) bool {
	switch op {
	case model.OpEquals:
		return fmt.Sprint(actual) == fmt.Sprint(want)
	case model.OpNotEquals:
		return fmt.Sprint(actual) != fmt.Sprint(want)
	case model.OpContains:
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(want))
	case model.OpGreaterThan:
		a, b, ok := numeric(actual, want)
		return ok && a > b
	case model.OpLessThan:
		a, b, ok := numeric(actual, want)
		return ok && a < b
	case model.OpIn:
		return inList(actual, want)
	case model.OpNotIn:
		return !inList(actual, want)
	default:
		return false
	}
}

func numeric(a, b any) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		return 0, false
	}
}

// inList reports whether actual matches any element of want, which
// must be a []any or []string (YAML-decoded lists land as []any).
func inList(actual, want any) bool {
	s := fmt.Sprint(actual)
	switch list := want.(type) {
	case []any:
		for _, v := range list {
			if fmt.Sprint(v) == s {
				return true
			}
		}
	case []string:
		for _, v := range list {
			if v == s {
				return true
			}
		}
	}
	return false
}
