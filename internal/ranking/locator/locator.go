// Package locator tracks the current user's standing when they fall
// outside the displayed top-N.
package locator

import (
	"sync"

	"github.com/questlab/ranksync/internal/ranking"
)

// Locator holds at most one out-of-window entry per period. The entry is
// replaced wholesale on every REST response that carries one, and cleared
// as soon as the user is found inside the top-N snapshot. The push
// channel never feeds it.
type Locator struct {
	mu      sync.RWMutex
	entries map[ranking.Period]*ranking.OutOfWindowEntry
}

// New creates an empty locator.
func New() *Locator {
	return &Locator{
		entries: make(map[ranking.Period]*ranking.OutOfWindowEntry),
	}
}

// Set replaces the entry for period.
func (l *Locator) Set(period ranking.Period, entry *ranking.OutOfWindowEntry) {
	if entry == nil {
		l.Clear(period)
		return
	}

	own := *entry
	if own.Level <= 0 {
		own.Level = ranking.LevelForXP(own.XP)
	}

	l.mu.Lock()
	l.entries[period] = &own
	l.mu.Unlock()
}

// Clear removes the entry for period.
func (l *Locator) Clear(period ranking.Period) {
	l.mu.Lock()
	delete(l.entries, period)
	l.mu.Unlock()
}

// Get returns a copy of the entry for period, or nil.
func (l *Locator) Get(period ranking.Period) *ranking.OutOfWindowEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[period]
	if !ok {
		return nil
	}

	out := *entry
	return &out
}

// Reset drops every entry. Called on full teardown.
func (l *Locator) Reset() {
	l.mu.Lock()
	l.entries = make(map[ranking.Period]*ranking.OutOfWindowEntry)
	l.mu.Unlock()
}
