package market_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/canopy-network/stakewatch/pkg/market"
	"github.com/canopy-network/stakewatch/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type blockingLookup struct {
	ready   bool
	release chan struct{}
	calls   atomic.Int32
	result  int
	err     error
}

func (b *blockingLookup) Ready() bool { return b.ready }

func (b *blockingLookup) FindProviders(_ context.Context, _ string) (int, error) {
	b.calls.Add(1)
	<-b.release
	return b.result, b.err
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingSink) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// TestRefresher_UpdatesReplicas tests a successful lookup and spin-set cleanup
func TestRefresher_UpdatesReplicas(t *testing.T) {
	list := market.NewWatchList(market.WatchItem{FileCid: "QmA", GlobalReplicas: 1})
	lookup := &blockingLookup{ready: true, release: make(chan struct{}), result: 9}
	sink := &recordingSink{}
	r := market.NewRefresher(list, lookup, sink, zaptest.NewLogger(t), 2)
	defer r.Close()

	require.Equal(t, market.RefreshStarted, r.StartRefresh(context.Background(), "QmA"))
	assert.True(t, r.IsSpinning("QmA"))
	assert.Equal(t, []string{"QmA"}, r.Spinning())

	close(lookup.release)
	require.Eventually(t, func() bool { return !r.IsSpinning("QmA") }, time.Second, 5*time.Millisecond)

	item, ok := list.Get("QmA")
	require.True(t, ok)
	assert.Equal(t, 9, item.GlobalReplicas)
	assert.Zero(t, sink.count())
}

// TestRefresher_AtMostOnePerKey tests that a second refresh of a spinning key is ignored
func TestRefresher_AtMostOnePerKey(t *testing.T) {
	list := market.NewWatchList(market.WatchItem{FileCid: "QmA"}, market.WatchItem{FileCid: "QmB"})
	lookup := &blockingLookup{ready: true, release: make(chan struct{}), result: 3}
	r := market.NewRefresher(list, lookup, nil, zaptest.NewLogger(t), 4)
	defer r.Close()

	assert.Equal(t, market.RefreshStarted, r.StartRefresh(context.Background(), "QmA"))
	assert.Equal(t, market.RefreshInFlight, r.StartRefresh(context.Background(), "QmA"))
	assert.Equal(t, market.RefreshStarted, r.StartRefresh(context.Background(), "QmB"))

	require.Eventually(t, func() bool { return lookup.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(lookup.release)
	require.Eventually(t, func() bool { return len(r.Spinning()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), lookup.calls.Load())
}

// TestRefresher_FailureIsSilent tests that failed lookups clear the spinner and change nothing
func TestRefresher_FailureIsSilent(t *testing.T) {
	list := market.NewWatchList(market.WatchItem{FileCid: "QmA", GlobalReplicas: 4})
	lookup := &blockingLookup{ready: true, release: make(chan struct{}), err: errors.New("routing: not found")}
	sink := &recordingSink{}
	r := market.NewRefresher(list, lookup, sink, zaptest.NewLogger(t), 1)
	defer r.Close()

	done := make(chan string, 1)
	r.OnDone = func(fileCid string) { done <- fileCid }

	require.Equal(t, market.RefreshStarted, r.StartRefresh(context.Background(), "QmA"))
	close(lookup.release)

	select {
	case cid := <-done:
		assert.Equal(t, "QmA", cid)
	case <-time.After(time.Second):
		t.Fatal("lookup did not finish")
	}
	assert.False(t, r.IsSpinning("QmA"))
	item, _ := list.Get("QmA")
	assert.Equal(t, 4, item.GlobalReplicas)
	assert.Zero(t, sink.count(), "per-attempt failures are not surfaced")

	assert.Equal(t, market.RefreshStarted, r.StartRefresh(context.Background(), "QmA"), "retry is a user re-trigger")
}

// TestRefresher_Unavailable tests the side-channel notification when lookups cannot run
func TestRefresher_Unavailable(t *testing.T) {
	list := market.NewWatchList(market.WatchItem{FileCid: "QmA"})
	lookup := &blockingLookup{ready: false, release: make(chan struct{})}
	sink := &recordingSink{}
	r := market.NewRefresher(list, lookup, sink, zaptest.NewLogger(t), 1)
	defer r.Close()

	assert.Equal(t, market.RefreshUnavailable, r.StartRefresh(context.Background(), "QmA"))
	assert.False(t, r.IsSpinning("QmA"))
	require.Equal(t, 1, sink.count())
	assert.Equal(t, notify.StatusError, sink.sent[0].Status)
	assert.Zero(t, lookup.calls.Load())
}

// TestRefresher_DetachedFromCallerContext tests that a cancelled request does not abort the lookup
func TestRefresher_DetachedFromCallerContext(t *testing.T) {
	list := market.NewWatchList(market.WatchItem{FileCid: "QmA"})
	lookup := &blockingLookup{ready: true, release: make(chan struct{}), result: 2}
	r := market.NewRefresher(list, lookup, nil, zaptest.NewLogger(t), 1)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.Equal(t, market.RefreshStarted, r.StartRefresh(ctx, "QmA"))
	cancel()
	close(lookup.release)

	require.Eventually(t, func() bool {
		item, _ := list.Get("QmA")
		return item.GlobalReplicas == 2
	}, time.Second, 5*time.Millisecond)
}

// TestRefresher_AfterClose tests that a closed refresher starts nothing and leaves no spinner
func TestRefresher_AfterClose(t *testing.T) {
	list := market.NewWatchList(market.WatchItem{FileCid: "QmA"})
	lookup := &blockingLookup{ready: true, release: make(chan struct{})}
	sink := &recordingSink{}
	r := market.NewRefresher(list, lookup, sink, zaptest.NewLogger(t), 1)
	r.Close()

	assert.Equal(t, market.RefreshUnavailable, r.StartRefresh(context.Background(), "QmA"))
	assert.False(t, r.IsSpinning("QmA"))
	assert.Empty(t, r.Spinning())
	assert.Zero(t, lookup.calls.Load())
	assert.Zero(t, sink.count())
}
