// Package keywords holds the moderation keyword set shared by every inbound event.
package keywords

import (
	"strings"
	"sync"

	"github.com/aretw0/tripwire/pkg/domain"
)

// Separator joins keywords for display and for the remote config value.
const Separator = ", "

// Snapshot is a stable copy of the keyword list taken under the store lock.
// Revision identifies the list contents at the time of the copy.
type Snapshot struct {
	Keywords []string
	Revision uint64
}

// Store is an ordered set of case-sensitive keywords plus the sync state
// and the auto-kick flag. A single mutex guards all of it.
type Store struct {
	mu       sync.Mutex
	items    []string
	index    map[string]struct{}
	state    domain.SyncState
	revision uint64
	autoKick bool
}

// Option configures the Store.
type Option func(*Store)

// WithAutoKick sets the initial auto-kick flag (default true).
func WithAutoKick(enabled bool) Option {
	return func(s *Store) {
		s.autoKick = enabled
	}
}

// NewStore creates a store seeded with initial keywords. Duplicates and
// empty entries are dropped. The initial state is Clean.
func NewStore(initial []string, opts ...Option) *Store {
	s := &Store{
		index:    make(map[string]struct{}),
		state:    domain.SyncState{Status: domain.SyncClean},
		autoKick: true,
	}
	for _, kw := range initial {
		s.insert(kw)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// insert must be called with mu held.
func (s *Store) insert(kw string) bool {
	if kw == "" {
		return false
	}
	if _, ok := s.index[kw]; ok {
		return false
	}
	s.index[kw] = struct{}{}
	s.items = append(s.items, kw)
	return true
}

// markDirty must be called with mu held.
func (s *Store) markDirty(changed bool) {
	if changed {
		s.revision++
	}
	s.state = domain.SyncState{Status: domain.SyncDirty}
}

// List returns the keywords in insertion order.
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyItems()
}

func (s *Store) copyItems() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of keywords.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Add inserts every candidate that is not already present, as one batch.
// Candidates already present (or repeated within the batch) are returned in present.
func (s *Store) Add(candidates []string) (added, present []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, kw := range candidates {
		if kw == "" {
			continue
		}
		if s.insert(kw) {
			added = append(added, kw)
		} else {
			present = append(present, kw)
		}
	}
	s.markDirty(len(added) > 0)
	return added, present
}

// Remove deletes every candidate that is present, as one batch, preserving
// the order of the remaining keywords.
func (s *Store) Remove(candidates []string) (removed, missing []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]struct{}, len(candidates))
	for _, kw := range candidates {
		if kw == "" {
			continue
		}
		if _, ok := s.index[kw]; !ok {
			missing = append(missing, kw)
			continue
		}
		delete(s.index, kw)
		drop[kw] = struct{}{}
		removed = append(removed, kw)
	}

	if len(drop) > 0 {
		kept := s.items[:0]
		for _, kw := range s.items {
			if _, gone := drop[kw]; !gone {
				kept = append(kept, kw)
			}
		}
		clear(s.items[len(kept):])
		s.items = kept
	}
	s.markDirty(len(removed) > 0)
	return removed, missing
}

// Clear empties the set and returns how many keywords were dropped.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.items)
	s.items = nil
	s.index = make(map[string]struct{})
	s.markDirty(n > 0)
	return n
}

// State returns the current sync state.
func (s *Store) State() domain.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot copies the keywords together with their revision.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Keywords: s.copyItems(), Revision: s.revision}
}

// MarkSynced moves the state to Clean if the keywords have not changed since
// the snapshot with the given revision was taken. It reports whether it did.
// A stale snapshot leaves the state Dirty.
func (s *Store) MarkSynced(revision uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if revision != s.revision {
		s.state = domain.SyncState{Status: domain.SyncDirty}
		return false
	}
	s.state = domain.SyncState{Status: domain.SyncClean}
	return true
}

// MarkSyncFailed records a failed sync. The keywords are left untouched.
func (s *Store) MarkSyncFailed(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.SyncState{Status: domain.SyncFailed, Reason: reason}
}

// AutoKick reports whether members matching a keyword are removed on join.
func (s *Store) AutoKick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoKick
}

// ToggleAutoKick flips the auto-kick flag and returns the new value.
func (s *Store) ToggleAutoKick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoKick = !s.autoKick
	return s.autoKick
}

// Join renders keywords with Separator.
func Join(keywords []string) string {
	return strings.Join(keywords, Separator)
}

// Split parses a Join-ed list, trimming blanks. Only Separator delimits, so a
// keyword may itself contain a bare comma.
func Split(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, Separator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
