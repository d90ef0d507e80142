package market

import (
	"slices"
	"sync"
)

// Selection is the set of checked rows. Each mutation installs a fresh slice, so a slice
// returned by Keys is never modified afterwards.
type Selection struct {
	mu   sync.RWMutex
	keys []string
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{keys: []string{}}
}

// Keys returns the selected keys in selection order.
func (s *Selection) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys
}

// Contains reports whether key is selected.
func (s *Selection) Contains(key string) bool {
	return slices.Contains(s.Keys(), key)
}

// ToggleOne selects key, or deselects it when already selected.
func (s *Selection) ToggleOne(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.keys, key); i >= 0 {
		s.keys = slices.Delete(slices.Clone(s.keys), i, i+1)
		return
	}
	next := make([]string, len(s.keys), len(s.keys)+1)
	copy(next, s.keys)
	s.keys = append(next, key)
}

// ToggleAll clears the selection when everything in universe is selected, otherwise
// selects a copy of universe.
func (s *Selection) ToggleAll(universe []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if allSelected(s.keys, universe) {
		s.keys = []string{}
		return
	}
	s.keys = dedup(universe)
}

// IsAllSelected reports whether the selection equals universe as a set. An empty universe
// is never all selected.
func (s *Selection) IsAllSelected(universe []string) bool {
	return allSelected(s.Keys(), universe)
}

// Retain drops selected keys that are not in universe.
func (s *Selection) Retain(universe []string) {
	in := toSet(universe)
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		if _, ok := in[k]; ok {
			next = append(next, k)
		}
	}
	s.keys = next
}

func allSelected(selected, universe []string) bool {
	if len(universe) == 0 {
		return false
	}
	want := toSet(universe)
	have := toSet(selected)
	if len(want) != len(have) {
		return false
	}
	for k := range want {
		if _, ok := have[k]; !ok {
			return false
		}
	}
	return true
}

func dedup(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
