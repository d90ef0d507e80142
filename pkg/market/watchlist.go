package market

import (
	"errors"
	"slices"
	"sync"
)

var (
	// ErrDuplicateItem is returned when a fileCid is already watched.
	ErrDuplicateItem = errors.New("file already watched")
	// ErrItemNotFound is returned for an unknown fileCid.
	ErrItemNotFound = errors.New("file not watched")
	// ErrEmptyCid is returned for an item without fileCid.
	ErrEmptyCid = errors.New("fileCid is required")
)

// WatchItem is a tracked storage-market deal.
type WatchItem struct {
	FileCid           string `json:"fileCid"`
	FileSize          uint64 `json:"fileSize"`
	StartTime         uint64 `json:"startTime"`
	ExpireTime        uint64 `json:"expireTime"`
	ConfirmedReplicas int    `json:"confirmedReplicas"`
	GlobalReplicas    int    `json:"globalReplicas"`
	FileStatus        string `json:"fileStatus"`
}

// WatchList keeps watch items in insertion order. Readers get immutable snapshots; every
// write swaps in a new slice.
type WatchList struct {
	mu    sync.RWMutex
	items []WatchItem
}

// NewWatchList returns a list seeded with items.
func NewWatchList(items ...WatchItem) *WatchList {
	return &WatchList{items: slices.Clone(items)}
}

// Items returns the current snapshot. Callers must not modify it.
func (w *WatchList) Items() []WatchItem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.items
}

// Cids returns the keys of every watched item in insertion order.
func (w *WatchList) Cids() []string {
	items := w.Items()
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.FileCid)
	}
	return out
}

// Get returns a copy of the item with the given fileCid.
func (w *WatchList) Get(fileCid string) (WatchItem, bool) {
	for _, it := range w.Items() {
		if it.FileCid == fileCid {
			return it, true
		}
	}
	return WatchItem{}, false
}

// Add starts watching an item.
func (w *WatchList) Add(item WatchItem) error {
	if item.FileCid == "" {
		return ErrEmptyCid
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if indexOf(w.items, item.FileCid) >= 0 {
		return ErrDuplicateItem
	}
	next := make([]WatchItem, len(w.items), len(w.items)+1)
	copy(next, w.items)
	w.items = append(next, item)
	return nil
}

// Remove stops watching the given items. Unknown keys are ignored.
func (w *WatchList) Remove(fileCids ...string) int {
	drop := make(map[string]struct{}, len(fileCids))
	for _, c := range fileCids {
		drop[c] = struct{}{}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	next := make([]WatchItem, 0, len(w.items))
	for _, it := range w.items {
		if _, ok := drop[it.FileCid]; !ok {
			next = append(next, it)
		}
	}
	removed := len(w.items) - len(next)
	w.items = next
	return removed
}

// UpdateGlobalReplicas sets the replica count reported by the network for one item.
func (w *WatchList) UpdateGlobalReplicas(fileCid string, replicas int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := indexOf(w.items, fileCid)
	if i < 0 {
		return ErrItemNotFound
	}
	next := slices.Clone(w.items)
	next[i].GlobalReplicas = replicas
	w.items = next
	return nil
}

func indexOf(items []WatchItem, fileCid string) int {
	return slices.IndexFunc(items, func(it WatchItem) bool { return it.FileCid == fileCid })
}
