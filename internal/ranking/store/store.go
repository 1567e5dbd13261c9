// Package store holds the last reconciled snapshot per ranking period.
package store

import (
	"sync"

	"github.com/questlab/ranksync/internal/ranking"
)

// Store is an in-memory map of period to last reconciled snapshot. A
// snapshot is replaced atomically on each accepted payload and survives
// period switches so returning to a period keeps its delta baseline.
// Bounded by the number of known periods, so no eviction.
type Store struct {
	mu        sync.RWMutex
	snapshots map[ranking.Period][]ranking.Entrant
}

// New creates an empty store.
func New() *Store {
	return &Store{
		snapshots: make(map[ranking.Period][]ranking.Entrant),
	}
}

// Get returns a copy of the snapshot for period, and whether one exists.
// An accepted empty snapshot is a valid state distinct from "never seen".
func (s *Store) Get(period ranking.Period) ([]ranking.Entrant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[period]
	if !ok {
		return nil, false
	}

	out := make([]ranking.Entrant, len(snapshot))
	copy(out, snapshot)
	return out, true
}

// Put replaces the snapshot for period.
func (s *Store) Put(period ranking.Period, snapshot []ranking.Entrant) {
	own := make([]ranking.Entrant, len(snapshot))
	copy(own, snapshot)

	s.mu.Lock()
	s.snapshots[period] = own
	s.mu.Unlock()
}

// Len returns the number of periods with a stored snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.snapshots)
}

// Clear drops all snapshots. Called only on full session teardown.
func (s *Store) Clear() {
	s.mu.Lock()
	s.snapshots = make(map[ranking.Period][]ranking.Entrant)
	s.mu.Unlock()
}
