package remediation

import (
	"regexp"
	"strings"

	"github.com/sanketsnayak/netheal/internal/model"
)

// Parameter extraction is necessarily heuristic: the Alert model
// carries a free-text RawMessage rather than structured fields per
// event type (spec §3 models Alert generically across syslog/SNMP
// sources). These patterns cover the interface/service/neighbor
// mentions the syslog classification table in internal/telemetry
// already recognizes; an unmatched alert falls back to a placeholder
// so step generation never panics on a missing parameter.
var (
	interfaceNamePattern = regexp.MustCompile(`(?i)(GigabitEthernet|TenGigabitEthernet|Ethernet|Eth|Port-channel)[0-9/]+`)
	ipv4Pattern          = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
)

// serviceKeywords maps a lowercase substring found in RawMessage to the
// canonical service name used as the "{service_name}" parameter.
var serviceKeywords = map[string]string{
	"bgpd":    "bgpd",
	"ospfd":   "ospfd",
	"snmpd":   "snmpd",
	"sshd":    "sshd",
	"ntpd":    "ntpd",
	"dhcpd":   "dhcpd",
	"routing": "routing-engine",
}

// buildParameters derives the template parameter set from alert,
// filling any the templates reference but cannot be extracted with a
// descriptive placeholder.
func buildParameters(alert model.Alert) map[string]string {
	params := map[string]string{
		"interface_name": extractInterfaceName(alert.RawMessage),
		"neighbor_ip":    extractNeighborIP(alert.RawMessage),
		"service_name":   extractServiceName(alert.RawMessage),
	}
	return params
}

func extractInterfaceName(raw string) string {
	if m := interfaceNamePattern.FindString(raw); m != "" {
		return m
	}
	return "GigabitEthernet0/0"
}

func extractNeighborIP(raw string) string {
	if m := ipv4Pattern.FindString(raw); m != "" {
		return m
	}
	return "0.0.0.0"
}

func extractServiceName(raw string) string {
	lower := strings.ToLower(raw)
	for k, v := range serviceKeywords {
		if strings.Contains(lower, k) {
			return v
		}
	}
	return "routing-engine"
}
