package types

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/canopy-network/stakewatch/pkg/addressbook"
	"github.com/canopy-network/stakewatch/pkg/favorites"
	"github.com/canopy-network/stakewatch/pkg/ipfs"
	"github.com/canopy-network/stakewatch/pkg/market"
	"github.com/canopy-network/stakewatch/pkg/notify"
	"github.com/canopy-network/stakewatch/pkg/redis"
	"github.com/canopy-network/stakewatch/pkg/retry"
	"github.com/canopy-network/stakewatch/pkg/snapshot"
	"github.com/canopy-network/stakewatch/pkg/staking"
	"go.uber.org/zap"
)

type App struct {
	// Zap Logger
	Logger *zap.Logger
	// RedisClient is nil when Redis is disabled or unreachable at start-up.
	RedisClient *redis.Client
	// Consumer tails the chain snapshot stream; nil without Redis.
	Consumer *redis.StreamConsumer

	Overview  *staking.Overview
	Book      *addressbook.Book
	Favorites favorites.Store

	WatchList *market.WatchList
	ListView  *market.ListView
	Selection *market.Selection
	Refresher *market.Refresher
	IPFS      *ipfs.Client
	// IPFSRetry controls the start-up connection attempts to the IPFS node.
	IPFSRetry retry.Config

	Notifier notify.Sink
	Hub      *Hub

	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server

	ipfsInitFailed atomic.Bool
}

// Connection is the storage node state shown on the landing view.
func (a *App) Connection() market.Connection {
	return market.ConnectionState(a.ipfsInitFailed.Load(), a.IPFS.Initialized(), a.IPFS.Ready())
}

// ToggleFavorite flips accountID in the favorites store and re-partitions the election.
func (a *App) ToggleFavorite(ctx context.Context, accountID string) (bool, error) {
	added, err := a.Favorites.Toggle(ctx, accountID)
	if err != nil {
		return false, err
	}
	if err := a.SyncFavorites(ctx); err != nil {
		return added, err
	}
	return added, nil
}

// SyncFavorites loads the favorites store into the overview.
func (a *App) SyncFavorites(ctx context.Context) error {
	list, err := a.Favorites.List(ctx)
	if err != nil {
		return err
	}
	a.Overview.SetFavorites(list)
	return nil
}

// RemoveWatchItems drops items from the watch list and from the selection.
func (a *App) RemoveWatchItems(fileCids ...string) int {
	removed := a.WatchList.Remove(fileCids...)
	a.Selection.Retain(a.WatchList.Cids())
	if removed > 0 {
		a.Hub.Publish(Message{Topic: TopicMarket, Type: "market.watch", Payload: map[string]interface{}{"removed": fileCids}})
	}
	return removed
}

// Start runs the background workers and the HTTP server until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.goSafe("overview-forwarder", func() { a.forwardOverview(ctx) })
	a.goSafe("ipfs-connect", func() { a.connectIPFS(ctx) })
	if a.Consumer != nil {
		a.goSafe("snapshot-consumer", func() {
			err := a.Consumer.Run(ctx, snapshot.Handler(a.Overview, a.Logger))
			if err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("Snapshot consumer stopped", zap.Error(err))
			}
		})
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = a.Server.Shutdown(shutdownCtx)
	a.Refresher.Close()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

func (a *App) forwardOverview(ctx context.Context) {
	events, unsubscribe := a.Overview.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			a.Hub.Publish(Message{Topic: TopicStaking, Type: ev.Kind, Payload: ev})
		}
	}
}

func (a *App) connectIPFS(ctx context.Context) {
	err := retry.WithBackoff(ctx, a.IPFSRetry, a.Logger, "ipfs connect", func() error {
		info, err := a.IPFS.Ping(ctx)
		if err != nil {
			return err
		}
		a.Logger.Info("Connected to IPFS node", zap.String("peerId", info.ID), zap.String("agent", info.AgentVersion))
		return nil
	})
	if err != nil && ctx.Err() == nil {
		a.ipfsInitFailed.Store(true)
		a.Logger.Warn("IPFS node unavailable, replica lookups disabled", zap.Error(err))
	}
	a.Hub.Publish(Message{Topic: TopicMarket, Type: "market.connection", Payload: map[string]market.Connection{"state": a.Connection()}})
}

func (a *App) goSafe(name string, fn func()) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				a.Logger.Error("Panic in background worker",
					zap.String("worker", name),
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())))
			}
		}()
		fn()
	}()
}
