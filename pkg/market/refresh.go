package market

import (
	"context"
	"slices"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/stakewatch/pkg/notify"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// ReplicaLookup resolves how many peers provide a content identifier.
type ReplicaLookup interface {
	// Ready reports whether lookups can currently be performed at all.
	Ready() bool
	FindProviders(ctx context.Context, fileCid string) (int, error)
}

// RefreshResult is the outcome of StartRefresh.
type RefreshResult int

const (
	// RefreshStarted means a lookup was submitted.
	RefreshStarted RefreshResult = iota
	// RefreshInFlight means a lookup for the key is already running.
	RefreshInFlight
	// RefreshUnavailable means the lookup service is not ready.
	RefreshUnavailable
)

func (r RefreshResult) String() string {
	switch r {
	case RefreshStarted:
		return "started"
	case RefreshInFlight:
		return "in_flight"
	case RefreshUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// UnavailableMessage is sent to the notification sink when lookups cannot run.
const UnavailableMessage = "replica lookup service is not connected"

// Refresher re-queries the global replica count of watch items, at most once per key at a time.
type Refresher struct {
	list     *WatchList
	lookup   ReplicaLookup
	sink     notify.Sink
	pool     pond.Pool
	spinning *xsync.Map[string, struct{}]
	logger   *zap.Logger

	// mu orders submissions against Close.
	mu     sync.RWMutex
	closed bool

	// OnDone, when set, runs after each lookup finished and the key left the spin set.
	OnDone func(fileCid string)
}

// NewRefresher returns a refresher running at most workers lookups concurrently.
func NewRefresher(list *WatchList, lookup ReplicaLookup, sink notify.Sink, logger *zap.Logger, workers int) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Refresher{
		list:     list,
		lookup:   lookup,
		sink:     sink,
		pool:     pond.NewPool(workers),
		spinning: xsync.NewMap[string, struct{}](),
		logger:   logger,
	}
}

// StartRefresh begins an asynchronous lookup for fileCid. A failed lookup is discarded;
// the key always leaves the spin set when the lookup returns. The lookup is detached from
// ctx cancellation and has no timeout.
func (r *Refresher) StartRefresh(ctx context.Context, fileCid string) RefreshResult {
	if !r.lookup.Ready() {
		if r.sink != nil {
			r.sink.Notify(ctx, notify.Notification{Status: notify.StatusError, Message: UnavailableMessage})
		}
		return RefreshUnavailable
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return RefreshUnavailable
	}
	if _, loaded := r.spinning.LoadOrStore(fileCid, struct{}{}); loaded {
		return RefreshInFlight
	}

	lookupCtx := context.WithoutCancel(ctx)
	r.pool.Submit(func() {
		defer func() {
			r.spinning.Delete(fileCid)
			if r.OnDone != nil {
				r.OnDone(fileCid)
			}
		}()
		replicas, err := r.lookup.FindProviders(lookupCtx, fileCid)
		if err != nil {
			r.logger.Debug("Replica lookup failed", zap.String("fileCid", fileCid), zap.Error(err))
			return
		}
		if err := r.list.UpdateGlobalReplicas(fileCid, replicas); err != nil {
			r.logger.Debug("Watch item removed during lookup", zap.String("fileCid", fileCid))
		}
	})
	return RefreshStarted
}

// IsSpinning reports whether a lookup for fileCid is running.
func (r *Refresher) IsSpinning(fileCid string) bool {
	_, ok := r.spinning.Load(fileCid)
	return ok
}

// Spinning returns a sorted copy of the keys with a running lookup.
func (r *Refresher) Spinning() []string {
	out := make([]string, 0, r.spinning.Size())
	r.spinning.Range(func(key string, _ struct{}) bool {
		out = append(out, key)
		return true
	})
	slices.Sort(out)
	return out
}

// Close waits for running lookups and stops the pool. Later refreshes report
// RefreshUnavailable and leave nothing spinning.
func (r *Refresher) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.pool.StopAndWait()
}
