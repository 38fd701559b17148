package worker

import "sync"

// RunningSet tracks which watch UUIDs currently have a check in flight.
// The scheduler consults it for dispatch dedup and the pool claims and
// releases entries around each check.
type RunningSet struct {
	mu      sync.RWMutex
	entries map[string]struct{}
}

// NewRunningSet creates an empty set.
func NewRunningSet() *RunningSet {
	return &RunningSet{entries: make(map[string]struct{})}
}

// Claim marks a UUID as running. Returns false when the UUID was
// already claimed.
func (rs *RunningSet) Claim(uuid string) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, exists := rs.entries[uuid]; exists {
		return false
	}
	rs.entries[uuid] = struct{}{}
	return true
}

// Release removes a UUID from the set.
func (rs *RunningSet) Release(uuid string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.entries, uuid)
}

// Contains reports whether a UUID is currently claimed.
func (rs *RunningSet) Contains(uuid string) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	_, exists := rs.entries[uuid]
	return exists
}

// Snapshot returns a copy of the claimed UUIDs.
func (rs *RunningSet) Snapshot() []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	uuids := make([]string, 0, len(rs.entries))
	for uuid := range rs.entries {
		uuids = append(uuids, uuid)
	}
	return uuids
}

// Len returns the number of claimed UUIDs.
func (rs *RunningSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.entries)
}
