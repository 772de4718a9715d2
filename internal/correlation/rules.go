package correlation

import "time"

// Rule is one baseline correlation rule (spec §4.2). A rule matches an
// incoming alert by TriggerTypes and pulls in open alerts of
// CorrelatedTypes within TimeWindow of it.
type Rule struct {
	Name              string
	TriggerTypes      []string
	CorrelatedTypes   []string
	TimeWindow        time.Duration
	TopologyDependent bool
	ConfidenceBase    float64
}

// baselineRules returns the fixed rule set. Not configurable today;
// config.CorrelationConfig tunes the thresholds the rules are
// evaluated against, not the rules themselves.
func baselineRules() []Rule {
	return []Rule{
		{
			Name:              "interface_cascade",
			TriggerTypes:      []string{"interface_down"},
			CorrelatedTypes:   []string{"bgp_peer_down", "service_unreachable", "high_latency"},
			TimeWindow:        120 * time.Second,
			TopologyDependent: true,
			ConfidenceBase:    0.90,
		},
		{
			Name:              "device_failure_cascade",
			TriggerTypes:      []string{"device_unreachable", "snmp_timeout"},
			CorrelatedTypes:   []string{"interface_down", "service_unreachable", "bgp_peer_down"},
			TimeWindow:        180 * time.Second,
			TopologyDependent: true,
			ConfidenceBase:    0.95,
		},
		{
			Name:              "bgp_flapping",
			TriggerTypes:      []string{"bgp_peer_down"},
			CorrelatedTypes:   []string{"bgp_peer_up", "routing_table_change", "packet_loss"},
			TimeWindow:        300 * time.Second,
			TopologyDependent: false,
			ConfidenceBase:    0.80,
		},
		{
			Name:              "performance_degradation",
			TriggerTypes:      []string{"high_cpu", "high_memory"},
			CorrelatedTypes:   []string{"high_utilization", "slow_response", "packet_drops"},
			TimeWindow:        600 * time.Second,
			TopologyDependent: false,
			ConfidenceBase:    0.70,
		},
		{
			Name:              "security_incident",
			TriggerTypes:      []string{"authentication_failure", "unauthorized_access"},
			CorrelatedTypes:   []string{"config_change", "unusual_traffic", "port_scan"},
			TimeWindow:        900 * time.Second,
			TopologyDependent: false,
			ConfidenceBase:    0.85,
		},
	}
}

// matchingRules returns every baseline rule whose TriggerTypes include
// alertType.
func matchingRules(alertType string) []Rule {
	var out []Rule
	for _, r := range baselineRules() {
		for _, t := range r.TriggerTypes {
			if t == alertType {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
