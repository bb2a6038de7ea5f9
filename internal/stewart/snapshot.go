package stewart

import (
	"sort"
	"time"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// Snapshot is an immutable threshold collection for one tenant. A recompute
// produces a new Snapshot and swaps it into the Store; existing readers keep
// the complete prior set, never a half-written one.
type Snapshot struct {
	tenant     string
	computedAt time.Time
	sets       map[Key]oil.ThresholdSet
}

// FromSets rebuilds a Snapshot from persisted threshold sets, e.g. when the
// classifier runs without a preceding recompute.
func FromSets(tenant string, sets []oil.ThresholdSet) *Snapshot {
	m := make(map[Key]oil.ThresholdSet, len(sets))
	var latest time.Time
	for _, ts := range sets {
		if ts.Tenant != tenant {
			continue
		}
		m[Key{MachineName: ts.MachineName, ComponentName: ts.ComponentName, Essay: ts.Essay}] = ts
		if ts.ComputedAt.After(latest) {
			latest = ts.ComputedAt
		}
	}
	return &Snapshot{tenant: tenant, computedAt: latest, sets: m}
}

// Tenant returns the owning tenant.
func (s *Snapshot) Tenant() string { return s.tenant }

// ComputedAt returns when the snapshot was derived.
func (s *Snapshot) ComputedAt() time.Time { return s.computedAt }

// Len returns the number of threshold groups in the snapshot.
func (s *Snapshot) Len() int { return len(s.sets) }

// Lookup returns the threshold set for a group. ok is false when the group
// was never calibrated; callers must treat its values as unclassifiable.
func (s *Snapshot) Lookup(machine, component, essay string) (oil.ThresholdSet, bool) {
	ts, ok := s.sets[Key{MachineName: machine, ComponentName: component, Essay: essay}]
	return ts, ok
}

// Sets returns all threshold sets in deterministic key order, for
// persistence and export.
func (s *Snapshot) Sets() []oil.ThresholdSet {
	keys := make([]Key, 0, len(s.sets))
	for k := range s.sets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	out := make([]oil.ThresholdSet, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.sets[k])
	}
	return out
}
