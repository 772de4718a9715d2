package rca

import (
	"fmt"
	"sort"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// Result is one ranked root-cause hypothesis, before being persisted
// onto an Incident as a model.RCAResult.
type Result struct {
	SuspectedCause      string
	Confidence          float64
	ContributingFactors []string
	Evidence            []string
	Timeline            []string
	Analyzer            string
}

// ruleFunc inspects the grouped alert set for one incident and returns
// a hypothesis, or nil if the rule doesn't apply.
type ruleFunc func(alerts []model.Alert) *Result

// ruleAnalyzers is the six rule-based analyzers, run in order (spec §4.3).
var ruleAnalyzers = []ruleFunc{
	interfaceFailureCascade,
	deviceHardwareFailure,
	bgpConvergenceIssue,
	performanceDegradation,
	securityIncident,
	configChangeImpact,
}

func groupByType(alerts []model.Alert) map[string][]model.Alert {
	out := make(map[string][]model.Alert)
	for _, a := range alerts {
		out[a.Type] = append(out[a.Type], a)
	}
	return out
}

func hasType(groups map[string][]model.Alert, t string) bool {
	_, ok := groups[t]
	return ok
}

func deviceSet(alerts []model.Alert) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range alerts {
		if !seen[a.Device] {
			seen[a.Device] = true
			out = append(out, a.Device)
		}
	}
	return out
}

func sortedTimes(alerts []model.Alert) []time.Time {
	out := make([]time.Time, len(alerts))
	for i, a := range alerts {
		out[i] = a.FirstOccurrence
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// temporalProximity returns a [0,1] score: 1.0 when all alerts share
// one timestamp, falling linearly with the first-to-last spread and
// reaching 0 once the spread is span or more. Used as a shared
// ingredient across the rule formulas.
func temporalProximity(alerts []model.Alert, span time.Duration) float64 {
	times := sortedTimes(alerts)
	if len(times) < 2 || span <= 0 {
		return 1.0
	}
	spread := times[len(times)-1].Sub(times[0])
	score := 1 - float64(spread)/float64(span)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// interfaceFailureCascade: an interface_down alert followed by
// downstream bgp/service effects on the same or topology-adjacent
// devices.
func interfaceFailureCascade(alerts []model.Alert) *Result {
	groups := groupByType(alerts)
	if !hasType(groups, "interface_down") {
		return nil
	}
	downstream := 0
	for _, t := range []string{"bgp_peer_down", "service_unreachable", "high_latency"} {
		downstream += len(groups[t])
	}
	if downstream == 0 {
		return nil
	}

	proximity := temporalProximity(alerts, 120*time.Second)
	devices := deviceSet(alerts)
	confidence := clamp01(0.5 + 0.3*proximity + 0.05*float64(len(devices)))

	return &Result{
		SuspectedCause: "interface failure cascade",
		Confidence:     confidence,
		ContributingFactors: []string{
			fmt.Sprintf("%d downstream alerts within window", downstream),
			fmt.Sprintf("%d devices affected", len(devices)),
		},
		Evidence: alertIDs(groups["interface_down"]),
		Timeline: timelineStrings(alerts),
		Analyzer: "rule:interface_failure_cascade",
	}
}

// deviceHardwareFailure: a device_unreachable or snmp_timeout alert,
// with high_cpu/high_memory alerts anywhere in the incident raising
// confidence (devices are not compared), suggesting the device itself
// (not just a link) is the root cause.
func deviceHardwareFailure(alerts []model.Alert) *Result {
	groups := groupByType(alerts)
	unreachable := append(append([]model.Alert{}, groups["device_unreachable"]...), groups["snmp_timeout"]...)
	if len(unreachable) == 0 {
		return nil
	}
	resourcePressure := len(groups["high_cpu"]) + len(groups["high_memory"])

	confidence := clamp01(0.6 + 0.1*float64(resourcePressure) + 0.1*temporalProximity(alerts, 180*time.Second))

	return &Result{
		SuspectedCause: "device hardware failure",
		Confidence:     confidence,
		ContributingFactors: []string{
			fmt.Sprintf("%d unreachable/timeout signals", len(unreachable)),
			fmt.Sprintf("%d resource-pressure signals", resourcePressure),
		},
		Evidence: alertIDs(unreachable),
		Timeline: timelineStrings(alerts),
		Analyzer: "rule:device_hardware_failure",
	}
}

// bgpConvergenceIssue: repeated bgp_peer_down/up transitions indicating
// flapping rather than a single clean failure.
func bgpConvergenceIssue(alerts []model.Alert) *Result {
	groups := groupByType(alerts)
	bgp := append(append([]model.Alert{}, groups["bgp_peer_down"]...), groups["bgp_peer_up"]...)
	if len(bgp) == 0 {
		return nil
	}

	flaps := flapCount(bgp)
	flapping := flaps >= 2
	confidence := clamp01(0.4 + 0.15*float64(flaps))
	cause := "bgp convergence issue"
	if flapping {
		cause = "bgp peer flapping"
		confidence = clamp01(confidence + 0.2)
	}

	return &Result{
		SuspectedCause: cause,
		Confidence:     confidence,
		ContributingFactors: []string{
			fmt.Sprintf("%d up/down transitions", flaps),
		},
		Evidence: alertIDs(bgp),
		Timeline: timelineStrings(alerts),
		Analyzer: "rule:bgp_convergence_issue",
	}
}

// flapCount counts alternating up/down transitions across bgp alerts
// sorted by time (spec §4.3 flapping detection).
func flapCount(alerts []model.Alert) int {
	sorted := append([]model.Alert{}, alerts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FirstOccurrence.Before(sorted[j].FirstOccurrence) })
	flaps := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Type != sorted[i-1].Type {
			flaps++
		}
	}
	return flaps
}

// performanceDegradation: sustained high_cpu/high_memory with
// secondary utilization/latency symptoms.
func performanceDegradation(alerts []model.Alert) *Result {
	groups := groupByType(alerts)
	primary := len(groups["high_cpu"]) + len(groups["high_memory"])
	if primary == 0 {
		return nil
	}
	secondary := len(groups["high_utilization"]) + len(groups["slow_response"]) + len(groups["packet_drops"])

	confidence := clamp01(0.45 + 0.1*float64(primary) + 0.05*float64(secondary))

	return &Result{
		SuspectedCause: "performance degradation",
		Confidence:     confidence,
		ContributingFactors: []string{
			fmt.Sprintf("%d resource-pressure alerts", primary),
			fmt.Sprintf("%d secondary symptoms", secondary),
		},
		Evidence: alertIDs(append(groups["high_cpu"], groups["high_memory"]...)),
		Timeline: timelineStrings(alerts),
		Analyzer: "rule:performance_degradation",
	}
}

// securityIncident: authentication_failure/unauthorized_access alerts,
// strengthened by how diverse the accompanying alert types are (a
// broader mix of symptom types is more consistent with an active
// intrusion than a single repeated alert type).
func securityIncident(alerts []model.Alert) *Result {
	groups := groupByType(alerts)
	primary := len(groups["authentication_failure"]) + len(groups["unauthorized_access"])
	if primary == 0 {
		return nil
	}
	secondary := len(groups["config_change"]) + len(groups["unusual_traffic"]) + len(groups["port_scan"])

	diversity := normalisedEntropy(countTypes(alerts))
	confidence := clamp01(0.5 + 0.08*float64(primary) + 0.05*float64(secondary) + 0.2*diversity)

	return &Result{
		SuspectedCause: "security incident",
		Confidence:     confidence,
		ContributingFactors: []string{
			fmt.Sprintf("%d auth/access alerts", primary),
			fmt.Sprintf("alert-type diversity %.2f", diversity),
		},
		Evidence: alertIDs(append(groups["authentication_failure"], groups["unauthorized_access"]...)),
		Timeline: timelineStrings(alerts),
		Analyzer: "rule:security_incident",
	}
}

// configChangeImpact: a config_change alert preceding other failure
// types, suggesting the change caused them.
func configChangeImpact(alerts []model.Alert) *Result {
	groups := groupByType(alerts)
	changes, ok := groups["config_change"]
	if !ok {
		return nil
	}

	earliestChange := sortedTimes(changes)[0]
	following := 0
	for _, a := range alerts {
		if a.Type != "config_change" && a.FirstOccurrence.After(earliestChange) {
			following++
		}
	}
	if following == 0 {
		return nil
	}

	confidence := clamp01(0.5 + 0.08*float64(following))

	return &Result{
		SuspectedCause: "config change impact",
		Confidence:     confidence,
		ContributingFactors: []string{
			fmt.Sprintf("%d alerts followed the change", following),
		},
		Evidence: alertIDs(changes),
		Timeline: timelineStrings(alerts),
		Analyzer: "rule:config_change_impact",
	}
}

func alertIDs(alerts []model.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.AlertID
	}
	return out
}

func timelineStrings(alerts []model.Alert) []string {
	sorted := append([]model.Alert{}, alerts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FirstOccurrence.Before(sorted[j].FirstOccurrence) })
	out := make([]string, len(sorted))
	for i, a := range sorted {
		out[i] = fmt.Sprintf("%s %s@%s", a.FirstOccurrence.Format(time.RFC3339), a.Type, a.Device)
	}
	return out
}
