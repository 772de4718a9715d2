package store

import (
	"sort"
	"sync"
	"time"

	"github.com/sanketsnayak/netheal/internal/model"
)

// MemStore is an in-memory Store, used by the "memory" storage backend
// and by package tests that need a deterministic, fast collaborator.
type MemStore struct {
	mu sync.RWMutex

	devices    map[string]model.Device
	alerts     map[string]model.Alert
	incidents  map[string]model.Incident
	policies   map[string]model.Policy
	actions    map[string]model.Action
	topologies map[string]model.Topology
	audit      []AuditEntry
	seq        map[string]int // prefix+YYYYMMDD -> last sequence issued
}

// NewMemStore returns an empty MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		devices:    make(map[string]model.Device),
		alerts:     make(map[string]model.Alert),
		incidents:  make(map[string]model.Incident),
		policies:   make(map[string]model.Policy),
		actions:    make(map[string]model.Action),
		topologies: make(map[string]model.Topology),
		seq:        make(map[string]int),
	}
}

func (s *MemStore) PutDevice(d model.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.Hostname] = d
	return nil
}

func (s *MemStore) GetDevice(hostname string) (*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[hostname]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *MemStore) ListDevices() ([]model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hostname < out[j].Hostname })
	return out, nil
}

func (s *MemStore) GetDeviceByMgmtIP(ip string) (*model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.devices {
		if d.MgmtIP == ip {
			cp := d
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemStore) DeleteDevice(hostname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, hostname)
	return nil
}

func (s *MemStore) PutAlert(a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.AlertID] = a
	return nil
}

func (s *MemStore) GetAlert(alertID string) (*model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[alertID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *MemStore) ListAlerts() ([]model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) FindOpenAlert(device, alertType string, now time.Time, window time.Duration) (*model.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *model.Alert
	for _, a := range s.alerts {
		if a.Device != device || a.Type != alertType {
			continue
		}
		switch a.Status {
		case model.AlertOpen, model.AlertAcknowledged, model.AlertInProgress:
		default:
			continue
		}
		if now.Sub(a.LastOccurrence) > window {
			continue
		}
		cp := a
		if best == nil || cp.LastOccurrence.After(best.LastOccurrence) {
			best = &cp
		}
	}
	return best, nil
}

func (s *MemStore) PutIncident(i model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[i.IncidentID] = i
	return nil
}

func (s *MemStore) GetIncident(incidentID string) (*model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.incidents[incidentID]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (s *MemStore) ListIncidents() ([]model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Incident, 0, len(s.incidents))
	for _, i := range s.incidents {
		out = append(out, i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) ListOpenIncidentsForDevice(device string) ([]model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Incident
	for _, i := range s.incidents {
		if i.State == model.IncidentResolved || i.State == model.IncidentClosed {
			continue
		}
		for _, d := range i.AffectedDevices {
			if d == device {
				out = append(out, i)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) PutPolicy(p model.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.PolicyID] = p
	return nil
}

func (s *MemStore) GetPolicy(policyID string) (*model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemStore) ListPolicies() ([]model.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *MemStore) PutAction(a model.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.ActionID] = a
	return nil
}

func (s *MemStore) GetAction(actionID string) (*model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[actionID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *MemStore) ListActions() ([]model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Action, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) ListActionsForIncident(incidentID string) ([]model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Action
	for _, a := range s.actions {
		if a.IncidentID == incidentID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) ListActiveActionsForDevice(device string) ([]model.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Action
	for _, a := range s.actions {
		if a.TargetDevice != device {
			continue
		}
		if a.Status.IsTerminal() {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *MemStore) PutTopology(t model.Topology) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topologies[t.TopologyID] = t
	return nil
}

func (s *MemStore) GetTopology(topologyID string) (*model.Topology, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topologies[topologyID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemStore) NextSequence(prefix string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := prefix + now.UTC().Format("20060102")
	s.seq[key]++
	return s.seq[key], nil
}

func (s *MemStore) AppendAudit(e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.audit = append(s.audit, e)
	return nil
}

func (s *MemStore) ReadAudit() ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out, nil
}

func (s *MemStore) PruneAudit(retentionDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	var kept []AuditEntry
	deleted := 0
	for _, e := range s.audit {
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.audit = kept
	return deleted, nil
}

func (s *MemStore) Close() error { return nil }
