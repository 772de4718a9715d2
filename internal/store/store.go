// Package store defines the persistence interface used by every stage
// of the healing pipeline, and the audit-trail record each stage
// appends to as it acts. Two implementations are provided:
// MemStore (in-memory, used in tests and for the "memory" storage
// backend) and BoltStore (BoltDB-backed, the default).
package store

import (
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// AuditEntry is a single audit-trail record, written whenever a stage
// changes the state of an Alert, Incident, Action, or Policy, or an
// operator issues a control command.
type AuditEntry struct {
	Timestamp time.Time
	NodeID    string
	Actor     string // "system" or "operator"
	Entity    string // "alert", "incident", "action", "policy"
	EntityID  string
	Event     string // e.g. "created", "status_changed", "approved"
	Detail    string
}

// Store is the abstract persistence boundary spec.md §3 treats as
// given. All methods are safe for concurrent use.
type Store interface {
	PutDevice(d model.Device) error
	GetDevice(hostname string) (*model.Device, error)
	// GetDeviceByMgmtIP returns the device whose MgmtIP matches ip, or
	// nil if none is known. Used by the telemetry collector to resolve
	// a UDP source address to a managed device.
	GetDeviceByMgmtIP(ip string) (*model.Device, error)
	ListDevices() ([]model.Device, error)
	DeleteDevice(hostname string) error

	PutAlert(a model.Alert) error
	GetAlert(alertID string) (*model.Alert, error)
	ListAlerts() ([]model.Alert, error)
	// FindOpenAlert returns an open (or acknowledged/in_progress) alert
	// for (device, alertType) whose LastOccurrence is within window of
	// now, or nil if none exists. Used for pre-correlation dedup.
	FindOpenAlert(device, alertType string, now time.Time, window time.Duration) (*model.Alert, error)

	PutIncident(i model.Incident) error
	GetIncident(incidentID string) (*model.Incident, error)
	ListIncidents() ([]model.Incident, error)
	// ListOpenIncidentsForDevice returns incidents affecting device that
	// are not in a terminal state (resolved/closed).
	ListOpenIncidentsForDevice(device string) ([]model.Incident, error)

	PutPolicy(p model.Policy) error
	GetPolicy(policyID string) (*model.Policy, error)
	ListPolicies() ([]model.Policy, error)

	PutAction(a model.Action) error
	GetAction(actionID string) (*model.Action, error)
	ListActions() ([]model.Action, error)
	ListActionsForIncident(incidentID string) ([]model.Action, error)
	// ListActiveActionsForDevice returns actions targeting device whose
	// Status is not terminal. Used by safety checks to block concurrent
	// execution against the same device.
	ListActiveActionsForDevice(device string) ([]model.Action, error)

	PutTopology(t model.Topology) error
	GetTopology(topologyID string) (*model.Topology, error)

	// NextSequence returns the next per-day sequence number for the
	// given ID prefix ("INC", "ACT", "POL", "TOP"), used by
	// model.NewSequencedID. Monotonic for the lifetime of the day.
	NextSequence(prefix string, now time.Time) (int, error)

	AppendAudit(e AuditEntry) error
	ReadAudit() ([]AuditEntry, error)
	// PruneAudit deletes audit entries older than retentionDays,
	// returning the number deleted.
	PruneAudit(retentionDays int) (int, error)

	Close() error
}
