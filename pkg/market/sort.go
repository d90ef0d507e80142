package market

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// SortKey names a sortable watch-item column.
type SortKey string

const (
	SortNone              SortKey = ""
	SortFileCid           SortKey = "fileCid"
	SortFileSize          SortKey = "fileSize"
	SortStartTime         SortKey = "startTime"
	SortExpireTime        SortKey = "expireTime"
	SortConfirmedReplicas SortKey = "confirmedReplicas"
	SortGlobalReplicas    SortKey = "globalReplicas"
	SortFileStatus        SortKey = "fileStatus"
)

var comparators = map[SortKey]func(a, b WatchItem) int{
	SortFileCid:           func(a, b WatchItem) int { return cmp.Compare(a.FileCid, b.FileCid) },
	SortFileSize:          func(a, b WatchItem) int { return cmp.Compare(a.FileSize, b.FileSize) },
	SortStartTime:         func(a, b WatchItem) int { return cmp.Compare(a.StartTime, b.StartTime) },
	SortExpireTime:        func(a, b WatchItem) int { return cmp.Compare(a.ExpireTime, b.ExpireTime) },
	SortConfirmedReplicas: func(a, b WatchItem) int { return cmp.Compare(a.ConfirmedReplicas, b.ConfirmedReplicas) },
	SortGlobalReplicas:    func(a, b WatchItem) int { return cmp.Compare(a.GlobalReplicas, b.GlobalReplicas) },
	SortFileStatus:        func(a, b WatchItem) int { return cmp.Compare(a.FileStatus, b.FileStatus) },
}

// ParseSortKey validates a column name.
func ParseSortKey(s string) (SortKey, error) {
	key := SortKey(s)
	if key == SortNone {
		return SortNone, nil
	}
	if _, ok := comparators[key]; !ok {
		return SortNone, fmt.Errorf("unknown sort key %q", s)
	}
	return key, nil
}

// SortState is the chosen column and direction.
type SortState struct {
	By        SortKey `json:"by"`
	Ascending bool    `json:"ascending"`
}

// DefaultSortState is applied when a list view is created: newest deals first.
func DefaultSortState() SortState {
	return SortState{By: SortStartTime, Ascending: false}
}

// Toggle flips the direction when key is already selected, otherwise selects key ascending.
func (s SortState) Toggle(key SortKey) SortState {
	if key == s.By {
		return SortState{By: key, Ascending: !s.Ascending}
	}
	return SortState{By: key, Ascending: true}
}

// Recompute returns a new slice ordered by s. Ties keep their input order and an empty
// key keeps the input order entirely.
func Recompute(items []WatchItem, s SortState) []WatchItem {
	out := slices.Clone(items)
	compare, ok := comparators[s.By]
	if !ok {
		return out
	}
	if s.Ascending {
		slices.SortStableFunc(out, compare)
	} else {
		slices.SortStableFunc(out, func(a, b WatchItem) int { return compare(b, a) })
	}
	return out
}

// ListView holds the sort state of one watch-list table.
type ListView struct {
	mu    sync.RWMutex
	state SortState
}

// NewListView returns a view with the default sort state.
func NewListView() *ListView {
	return &ListView{state: DefaultSortState()}
}

// State returns the current sort state.
func (v *ListView) State() SortState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// SetSort toggles the sort state for key and returns the new state.
func (v *ListView) SetSort(key SortKey) SortState {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = v.state.Toggle(key)
	return v.state
}

// Sorted projects items through the current sort state.
func (v *ListView) Sorted(items []WatchItem) []WatchItem {
	return Recompute(items, v.State())
}
