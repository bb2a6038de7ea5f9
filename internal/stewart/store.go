package stewart

import "sync"

// Store holds the current threshold snapshot per tenant. Snapshots are
// replaced wholesale, never mutated in place, so concurrent tenant
// processing needs no further coordination.
type Store struct {
	mu    sync.RWMutex
	snaps map[string]*Snapshot
}

// NewStore returns an empty snapshot store.
func NewStore() *Store {
	return &Store{snaps: make(map[string]*Snapshot)}
}

// Swap atomically installs snap as its tenant's current snapshot.
func (st *Store) Swap(snap *Snapshot) {
	st.mu.Lock()
	st.snaps[snap.tenant] = snap
	st.mu.Unlock()
}

// Current returns the tenant's current snapshot, or nil if the tenant has
// never been calibrated.
func (st *Store) Current(tenant string) *Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snaps[tenant]
}
