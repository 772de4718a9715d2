package telemetry

import (
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// parseSNMPTrap produces a ParsedEvent for an opaque SNMP trap
// payload. Spec §6: payload is not decoded, only hex-previewed;
// classified as snmp_trap with severity=warning.
func parseSNMPTrap(addr string, payload []byte, now time.Time) ParsedEvent {
	return ParsedEvent{
		Source:     "snmp",
		SourceAddr: addr,
		EventType:  "snmp_trap",
		Severity:   model.SeverityWarning,
		Message:    "snmp trap, payload=" + hexPreview(payload, 32),
		ParseError: false,
		ReceivedAt: now,
	}
}
