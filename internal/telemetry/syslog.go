package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// ParsedEvent is the normalized shape produced from a raw datagram,
// before dedup/enrichment/alert-generation decisions.
type ParsedEvent struct {
	Source     string
	SourceAddr string
	EventType  string
	Severity   model.Severity
	Message    string
	Host       string // hostname as reported in the syslog header, if any
	ParseError bool
	ReceivedAt time.Time
}

// classificationRules is evaluated in order; first match wins. Each
// rule's substrings are matched case-insensitively against Message.
var classificationRules = []struct {
	eventType string
	needles   []string // all must be present (AND)
}{
	{"interface_down", []string{"interface", "down"}},
	{"interface_up", []string{"interface", "up"}},
	{"bgp_peer_down", []string{"bgp", "down"}},
	{"bgp_peer_up", []string{"bgp", "up"}},
	{"high_cpu", []string{"cpu", "high"}},
	{"high_memory", []string{"memory", "high"}},
	{"config_change", []string{"config", "changed"}},
}

// classify returns the event_type for a syslog message body, per the
// deterministic case-insensitive substring table (spec §4.1). The
// login/authentication rule is OR, not AND, so it is checked outside
// the AND-table above.
func classify(message string) string {
	lower := strings.ToLower(message)
	for _, rule := range classificationRules {
		matched := true
		for _, needle := range rule.needles {
			if !strings.Contains(lower, needle) {
				matched = false
				break
			}
		}
		if matched {
			return rule.eventType
		}
	}
	if strings.Contains(lower, "login") || strings.Contains(lower, "authentication") {
		return "authentication_event"
	}
	return "system_message"
}

// syslogSeverity maps the PRI severity nibble (0-7) to the pipeline's
// Severity enum.
func syslogSeverity(sev int) model.Severity {
	switch {
	case sev <= 2: // emergency, alert, critical
		return model.SeverityCritical
	case sev == 3: // error
		return model.SeverityMajor
	case sev == 4: // warning
		return model.SeverityMinor
	default: // notice, info, debug
		return model.SeverityInfo
	}
}

// parseSyslog parses a <PRI>MMM DD HH:MM:SS HOST MSG datagram.
// Unparseable messages are returned with ParseError=true and
// Severity=info, per spec §4.1, not discarded.
func parseSyslog(addr string, payload []byte, now time.Time) ParsedEvent {
	raw := string(payload)

	pri, rest, ok := splitPRI(raw)
	if !ok {
		return ParsedEvent{
			Source:     "syslog",
			SourceAddr: addr,
			EventType:  classify(raw),
			Severity:   model.SeverityInfo,
			Message:    raw,
			ParseError: true,
			ReceivedAt: now,
		}
	}

	severity := syslogSeverity(pri % 8)
	host, message := splitHeader(rest)

	return ParsedEvent{
		Source:     "syslog",
		SourceAddr: addr,
		EventType:  classify(message),
		Severity:   severity,
		Message:    message,
		Host:       host,
		ParseError: false,
		ReceivedAt: now,
	}
}

// splitPRI extracts the PRI value from a leading "<PRI>" token.
func splitPRI(raw string) (pri int, rest string, ok bool) {
	if !strings.HasPrefix(raw, "<") {
		return 0, raw, false
	}
	end := strings.IndexByte(raw, '>')
	if end < 0 {
		return 0, raw, false
	}
	n, err := strconv.Atoi(raw[1:end])
	if err != nil {
		return 0, raw, false
	}
	return n, raw[end+1:], true
}

// splitHeader best-effort splits "MMM DD HH:MM:SS HOST MSG" into the
// reporting host and the message body. Falls back to treating the
// whole remainder as the message if the timestamp+host shape isn't
// present (still not a ParseError — spec only requires PRI to parse).
func splitHeader(rest string) (host, message string) {
	fields := strings.SplitN(strings.TrimSpace(rest), " ", 5)
	if len(fields) < 5 {
		return "", strings.TrimSpace(rest)
	}
	// fields: Mon, Day, Time, Host, Message
	return fields[3], fields[4]
}

// FacilityOf returns PRI/8, exposed for diagnostics/logging only.
func FacilityOf(pri int) int { return pri / 8 }

// hexPreview renders up to n bytes of b as a hex string, used for
// opaque SNMP trap payload logging.
func hexPreview(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	var sb strings.Builder
	for _, c := range b {
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}
