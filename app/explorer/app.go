package explorer

import (
	"context"
	"time"

	"github.com/canopy-network/stakewatch/app/explorer/types"
	"github.com/canopy-network/stakewatch/pkg/addressbook"
	"github.com/canopy-network/stakewatch/pkg/favorites"
	"github.com/canopy-network/stakewatch/pkg/ipfs"
	"github.com/canopy-network/stakewatch/pkg/logging"
	"github.com/canopy-network/stakewatch/pkg/market"
	"github.com/canopy-network/stakewatch/pkg/notify"
	"github.com/canopy-network/stakewatch/pkg/redis"
	"github.com/canopy-network/stakewatch/pkg/retry"
	"github.com/canopy-network/stakewatch/pkg/staking"
	"github.com/canopy-network/stakewatch/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	// Redis is optional: favorites fall back to memory and the snapshot stream is off.
	var redisClient *redis.Client
	if utils.EnvBool("REDIS_ENABLED", false) {
		cfg := redis.ConfigFromEnv()
		connectCfg := retry.DefaultConfig()
		connectCfg.MaxRetries = utils.EnvInt("REDIS_CONNECT_RETRIES", 5)
		err = retry.WithBackoff(ctx, connectCfg, logger, "redis connect", func() error {
			c, connErr := redis.NewClient(ctx, cfg, logger)
			if connErr != nil {
				return connErr
			}
			redisClient = c
			return nil
		})
		if err != nil {
			logger.Warn("Failed to initialize Redis client - favorites kept in memory, chain snapshots disabled",
				zap.Error(err))
			redisClient = nil
		}
	} else {
		logger.Info("Redis disabled - favorites kept in memory, chain snapshots disabled")
	}

	book, err := addressbook.Load(utils.Env("ADDRESS_BOOK_PATH", ""))
	if err != nil {
		logger.Fatal("Unable to load address book", zap.Error(err))
	}

	overview := staking.NewOverview(logger.Named("overview"), staking.Visibility{
		IdentityEnabled: utils.EnvBool("IDENTITY_ENABLED", true),
		Book:            book,
	})

	hub := types.NewHub()
	sinks := notify.Multi{notify.LogSink{Logger: logger.Named("notify")}, hub}

	var favStore favorites.Store = favorites.NewMemoryStore()
	var consumer *redis.StreamConsumer
	if redisClient != nil {
		favStore = favorites.NewRedisStore(redisClient)
		sinks = append(sinks, notify.RedisSink{Publisher: redisClient, Logger: logger})

		consumer, err = redis.NewStreamConsumer(redisClient, redis.StreamConsumerConfig{
			Stream: utils.Env("SNAPSHOT_STREAM", "stakewatch:chain"),
			LastID: utils.Env("SNAPSHOT_START_ID", "0"),
			Logger: logger.Named("snapshots"),
		})
		if err != nil {
			logger.Fatal("Unable to create snapshot consumer", zap.Error(err))
		}
	}

	ipfsClient := ipfs.New(ipfs.Opts{
		Endpoints:       utils.EnvList("IPFS_ENDPOINTS", []string{"http://127.0.0.1:5001"}),
		Timeout:         time.Duration(utils.EnvInt("IPFS_TIMEOUT_SECONDS", 10)) * time.Second,
		RPS:             utils.EnvInt("IPFS_RPS", 10),
		Burst:           utils.EnvInt("IPFS_BURST", 20),
		BreakerFailures: utils.EnvInt("IPFS_BREAKER_FAILURES", 3),
		Logger:          logger.Named("ipfs"),
	})

	watchList := market.NewWatchList()
	refresher := market.NewRefresher(watchList, ipfsClient, sinks, logger.Named("refresh"), utils.EnvInt("REFRESH_WORKERS", 4))
	refresher.OnDone = func(fileCid string) {
		payload := map[string]interface{}{"fileCid": fileCid}
		if item, ok := watchList.Get(fileCid); ok {
			payload["globalReplicas"] = item.GlobalReplicas
		}
		hub.Publish(types.Message{Topic: types.TopicMarket, Type: "market.replicas", Payload: payload})
	}

	app := &types.App{
		Logger:      logger,
		RedisClient: redisClient,
		Consumer:    consumer,
		Overview:    overview,
		Book:        book,
		Favorites:   favStore,
		WatchList:   watchList,
		ListView:    market.NewListView(),
		Selection:   market.NewSelection(),
		Refresher:   refresher,
		IPFS:        ipfsClient,
		IPFSRetry:   retry.DefaultConfig(),
		Notifier:    sinks,
		Hub:         hub,
	}

	if err := app.SyncFavorites(ctx); err != nil {
		logger.Warn("Unable to load favorites", zap.Error(err))
	}

	return app
}
