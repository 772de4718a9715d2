package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identifiers are assigned by the core whenever a caller omits one.
// Once assigned they are stable for the lifetime of the entity (§6).
//
//	Alert:     ALT-<base36 unix nanos>-<rand4>
//	RCAResult: RCA-<base36 unix nanos>-<rand4>
//	Incident:  INC-YYYYMMDD-NNNN
//	Action:    ACT-YYYYMMDD-NNNN
//	Policy:    POL-YYYYMMDD-NNNN
//	Topology:  TOP-YYYYMMDD-NNNN
//
// The YYYYMMDD-NNNN family uses a per-day sequence counter supplied by
// the caller (typically the Store, which owns the monotonic count);
// this package only formats the string.

// randSuffix returns a short, non-cryptographic random token derived
// from a uuid. Used only to disambiguate IDs minted in the same
// nanosecond; never used for anything security-sensitive.
func randSuffix() string {
	u := uuid.New()
	return strings.ToUpper(u.String()[:4])
}

// NewAlertID mints an ALT-<ts36>-<rand> identifier.
func NewAlertID(now time.Time) string {
	return fmt.Sprintf("ALT-%s-%s", strconv.FormatInt(now.UnixNano(), 36), randSuffix())
}

// NewRCAID mints an RCA-<ts36>-<rand> identifier.
func NewRCAID(now time.Time) string {
	return fmt.Sprintf("RCA-%s-%s", strconv.FormatInt(now.UnixNano(), 36), randSuffix())
}

// NewSequencedID mints a <prefix>-YYYYMMDD-NNNN identifier given a
// per-day sequence number seq (1-based). Used for Incident, Action,
// Policy, and Topology IDs.
func NewSequencedID(prefix string, now time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), seq)
}
