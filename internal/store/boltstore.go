// BoltDB-backed persistent Store for the healing pipeline.
//
// Schema (BoltDB bucket layout):
//
//	/devices    key: hostname                        value: JSON Device
//	/alerts     key: alert_id                         value: JSON Alert
//	/incidents  key: incident_id                      value: JSON Incident
//	/policies   key: policy_id                         value: JSON Policy
//	/actions    key: action_id                        value: JSON Action
//	/topology   key: topology_id                      value: JSON Topology
//	/audit      key: RFC3339Nano + "_" + entity_id     value: JSON AuditEntry
//	/meta       key: "schema_version"                 value: "1"
//	/seq        key: prefix + YYYYMMDD                value: big-endian uint32 counter
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent writers).
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()).
//   - CRC32 integrity check on database open (bbolt built-in).
//
// Retention:
//   - Audit entries older than retentionDays are pruned on startup
//     (cmd/healer calls PruneAudit once at boot).
//
// Failure modes:
//   - BoltDB file corruption: bbolt detects via CRC and returns an
//     error on Open(). The process logs a fatal event and refuses to
//     start. Recovery: restore from backup.
//   - Disk full: bbolt.Update() returns an error; the caller's write
//     fails and in-memory pipeline state is preserved until the next
//     successful write.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sanketsnayak/netheal/internal/model"
)

const (
	// SchemaVersion is the current database schema version.
	SchemaVersion = "1"

	bucketDevices   = "devices"
	bucketAlerts    = "alerts"
	bucketIncidents = "incidents"
	bucketPolicies  = "policies"
	bucketActions   = "actions"
	bucketTopology  = "topology"
	bucketAudit     = "audit"
	bucketMeta      = "meta"
	bucketSeq       = "seq"
)

var allBuckets = []string{
	bucketDevices, bucketAlerts, bucketIncidents, bucketPolicies,
	bucketActions, bucketTopology, bucketAudit, bucketMeta, bucketSeq,
}

// BoltStore is a Store backed by a single BoltDB file.
type BoltStore struct {
	db            *bolt.DB
	retentionDays int
}

// OpenBolt opens (or creates) the BoltDB database at path, initialising
// all required buckets and verifying the schema version.
func OpenBolt(path string, retentionDays int) (*BoltStore, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	s := &BoltStore{db: bdb, retentionDays: retentionDays}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(SchemaVersion)); err != nil {
				return fmt.Errorf("write schema_version: %w", err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("database initialisation failed: %w", err)
	}

	if err := s.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return s, nil
}

func (s *BoltStore) checkSchemaVersion() error {
	return s.db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		v := meta.Get([]byte("schema_version"))
		if string(v) != SchemaVersion {
			return fmt.Errorf(
				"schema version mismatch: database has %q, process requires %q. "+
					"Run migration or restore from backup.",
				string(v), SchemaVersion,
			)
		}
		return nil
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }

func putJSON(tx *bolt.Tx, bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", bucket, key, err)
	}
	b := tx.Bucket([]byte(bucket))
	if err := b.Put([]byte(key), data); err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func getJSON(tx *bolt.Tx, bucket, key string, v any) (bool, error) {
	b := tx.Bucket([]byte(bucket))
	data := b.Get([]byte(key))
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

// ─── Devices ──────────────────────────────────────────────────────────

func (s *BoltStore) PutDevice(d model.Device) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketDevices, d.Hostname, d)
	})
}

func (s *BoltStore) GetDevice(hostname string) (*model.Device, error) {
	var d model.Device
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketDevices, hostname, &d)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

func (s *BoltStore) ListDevices() ([]model.Device, error) {
	var out []model.Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketDevices))
		return b.ForEach(func(_, v []byte) error {
			var d model.Device
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) GetDeviceByMgmtIP(ip string) (*model.Device, error) {
	var out *model.Device
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketDevices))
		return b.ForEach(func(_, v []byte) error {
			var d model.Device
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.MgmtIP == ip {
				out = &d
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteDevice(hostname string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketDevices)).Delete([]byte(hostname))
	})
}

// ─── Alerts ───────────────────────────────────────────────────────────

func (s *BoltStore) PutAlert(a model.Alert) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketAlerts, a.AlertID, a)
	})
}

func (s *BoltStore) GetAlert(alertID string) (*model.Alert, error) {
	var a model.Alert
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketAlerts, alertID, &a)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

func (s *BoltStore) ListAlerts() ([]model.Alert, error) {
	var out []model.Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAlerts))
		return b.ForEach(func(_, v []byte) error {
			var a model.Alert
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			out = append(out, a)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) FindOpenAlert(device, alertType string, now time.Time, window time.Duration) (*model.Alert, error) {
	var best *model.Alert
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAlerts))
		return b.ForEach(func(_, v []byte) error {
			var a model.Alert
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.Device != device || a.Type != alertType {
				return nil
			}
			switch a.Status {
			case model.AlertOpen, model.AlertAcknowledged, model.AlertInProgress:
			default:
				return nil
			}
			if now.Sub(a.LastOccurrence) > window {
				return nil
			}
			cp := a
			if best == nil || cp.LastOccurrence.After(best.LastOccurrence) {
				best = &cp
			}
			return nil
		})
	})
	return best, err
}

// ─── Incidents ────────────────────────────────────────────────────────

func (s *BoltStore) PutIncident(i model.Incident) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketIncidents, i.IncidentID, i)
	})
}

func (s *BoltStore) GetIncident(incidentID string) (*model.Incident, error) {
	var i model.Incident
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketIncidents, incidentID, &i)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &i, nil
}

func (s *BoltStore) ListIncidents() ([]model.Incident, error) {
	var out []model.Incident
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketIncidents))
		return b.ForEach(func(_, v []byte) error {
			var i model.Incident
			if err := json.Unmarshal(v, &i); err != nil {
				return err
			}
			out = append(out, i)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListOpenIncidentsForDevice(device string) ([]model.Incident, error) {
	var out []model.Incident
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketIncidents))
		return b.ForEach(func(_, v []byte) error {
			var i model.Incident
			if err := json.Unmarshal(v, &i); err != nil {
				return err
			}
			if i.State == model.IncidentResolved || i.State == model.IncidentClosed {
				return nil
			}
			for _, d := range i.AffectedDevices {
				if d == device {
					out = append(out, i)
					break
				}
			}
			return nil
		})
	})
	return out, err
}

// ─── Policies ─────────────────────────────────────────────────────────

func (s *BoltStore) PutPolicy(p model.Policy) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketPolicies, p.PolicyID, p)
	})
}

func (s *BoltStore) GetPolicy(policyID string) (*model.Policy, error) {
	var p model.Policy
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketPolicies, policyID, &p)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListPolicies() ([]model.Policy, error) {
	var out []model.Policy
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPolicies))
		return b.ForEach(func(_, v []byte) error {
			var p model.Policy
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

// ─── Actions ──────────────────────────────────────────────────────────

func (s *BoltStore) PutAction(a model.Action) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketActions, a.ActionID, a)
	})
}

func (s *BoltStore) GetAction(actionID string) (*model.Action, error) {
	var a model.Action
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketActions, actionID, &a)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &a, nil
}

func (s *BoltStore) ListActions() ([]model.Action, error) {
	var out []model.Action
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketActions))
		return b.ForEach(func(_, v []byte) error {
			var a model.Action
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			out = append(out, a)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListActionsForIncident(incidentID string) ([]model.Action, error) {
	var out []model.Action
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketActions))
		return b.ForEach(func(_, v []byte) error {
			var a model.Action
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.IncidentID == incidentID {
				out = append(out, a)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListActiveActionsForDevice(device string) ([]model.Action, error) {
	var out []model.Action
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketActions))
		return b.ForEach(func(_, v []byte) error {
			var a model.Action
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.TargetDevice != device || a.Status.IsTerminal() {
				return nil
			}
			out = append(out, a)
			return nil
		})
	})
	return out, err
}

// ─── Topology ─────────────────────────────────────────────────────────

func (s *BoltStore) PutTopology(t model.Topology) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketTopology, t.TopologyID, t)
	})
}

func (s *BoltStore) GetTopology(topologyID string) (*model.Topology, error) {
	var t model.Topology
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		found, err = getJSON(tx, bucketTopology, topologyID, &t)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &t, nil
}

// ─── Sequence counters ────────────────────────────────────────────────

func (s *BoltStore) NextSequence(prefix string, now time.Time) (int, error) {
	key := prefix + now.UTC().Format("20060102")
	var next uint32
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketSeq))
		cur := b.Get([]byte(key))
		var n uint32
		if cur != nil {
			n = binary.BigEndian.Uint32(cur)
		}
		n++
		next = n
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, n)
		return b.Put([]byte(key), buf)
	})
	return int(next), err
}

// ─── Audit trail ──────────────────────────────────────────────────────

// auditKey constructs a sortable BoltDB key for an audit entry.
// Lexicographic sort = chronological sort.
func auditKey(t time.Time, entityID string) []byte {
	return []byte(fmt.Sprintf("%s_%s", t.UTC().Format(time.RFC3339Nano), entityID))
}

func (s *BoltStore) AppendAudit(e AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("AppendAudit marshal: %w", err)
	}
	key := auditKey(e.Timestamp, e.EntityID)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketAudit)).Put(key, data)
	})
}

func (s *BoltStore) ReadAudit() ([]AuditEntry, error) {
	var out []AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAudit))
		return b.ForEach(func(_, v []byte) error {
			var e AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) PruneAudit(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = s.retentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	cutoffKey := auditKey(cutoff, "")

	var deleted int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketAudit))
		c := b.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) >= string(cutoffKey) {
				break
			}
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			toDelete = append(toDelete, keyCopy)
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("PruneAudit delete: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
