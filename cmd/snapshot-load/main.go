package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/canopy-network/stakewatch/pkg/logging"
	"github.com/canopy-network/stakewatch/pkg/redis"
	"github.com/canopy-network/stakewatch/pkg/retry"
	"github.com/canopy-network/stakewatch/pkg/snapshot"
	"github.com/canopy-network/stakewatch/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var stream string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot-load [file]",
		Short: "Append chain snapshots to the explorer stream",
		Long: `Read newline-delimited {"kind": ..., "data": ...} entries from a file, or stdin when
no file is given, and append each one to the Redis stream the explorer tails.

Redis is configured with REDIS_HOST, REDIS_PORT, REDIS_PASSWORD and REDIS_DB.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         run,
	}
	cmd.Flags().StringVar(&stream, "stream", utils.Env("SNAPSHOT_STREAM", "stakewatch:chain"), "target stream key")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger, err := logging.New()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var in io.Reader = os.Stdin
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open snapshots: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	var client *redis.Client
	err = retry.WithBackoff(ctx, retry.DefaultConfig(), logger, "redis connect", func() error {
		c, connErr := redis.NewClient(ctx, redis.ConfigFromEnv(), logger)
		if connErr != nil {
			return connErr
		}
		client = c
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = client.Close() }()

	n, err := snapshot.NewPublisher(client, stream).PublishLines(ctx, in)
	logger.Info("Snapshots published", zap.String("stream", stream), zap.Int("entries", n))
	return err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
