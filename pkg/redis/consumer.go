package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamReader is the subset of Client used by StreamConsumer.
type StreamReader interface {
	XRead(ctx context.Context, streams []string, lastIDs []string, count int64, block time.Duration) ([]redis.XStream, error)
}

// StreamConsumerConfig configures a StreamConsumer.
type StreamConsumerConfig struct {
	// Stream is the Redis stream name to consume from (required).
	Stream string

	// LastID is the starting position. "0" replays the stream from the beginning,
	// "$" reads only new entries. Default: "0".
	LastID string

	// Count is the max number of entries to read per batch. Default: 100.
	Count int64

	// Block is how long each read waits for new entries. Default: 5 seconds.
	Block time.Duration

	// RetryInterval is the first wait after a read error. Default: 1 second.
	RetryInterval time.Duration

	// MaxRetryInterval caps the exponential backoff. Default: 30 seconds.
	MaxRetryInterval time.Duration

	Logger *zap.Logger
}

// MessageHandler processes a stream message. Errors are logged and the message is skipped.
type MessageHandler func(ctx context.Context, msg Message) error

// Message is a single stream entry.
type Message struct {
	ID     string
	Stream string
	Values map[string]interface{}
}

// StreamConsumer tails a Redis stream without a consumer group. Every explorer instance
// needs the whole state, so each one replays the stream on its own.
type StreamConsumer struct {
	reader StreamReader
	config StreamConsumerConfig
	logger *zap.Logger
	lastID string
}

// NewStreamConsumer creates a new stream consumer.
func NewStreamConsumer(reader StreamReader, config StreamConsumerConfig) (*StreamConsumer, error) {
	if reader == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name is required")
	}

	if config.LastID == "" {
		config.LastID = "0"
	}
	if config.Count == 0 {
		config.Count = 100
	}
	if config.Block == 0 {
		config.Block = 5 * time.Second
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = 1 * time.Second
	}
	if config.MaxRetryInterval == 0 {
		config.MaxRetryInterval = 30 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamConsumer{
		reader: reader,
		config: config,
		logger: logger,
		lastID: config.LastID,
	}, nil
}

// LastID returns the ID of the last entry handed to the handler.
func (sc *StreamConsumer) LastID() string {
	return sc.lastID
}

// Run reads messages and calls handler for each, in stream order. Blocks until ctx is
// cancelled; read errors are retried with exponential backoff.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	retryInterval := sc.config.RetryInterval

	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("Stream consumer shutting down", zap.String("stream", sc.config.Stream))
			return ctx.Err()
		default:
		}

		messages, err := sc.readMessages(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, redis.Nil) {
				// block timeout without entries
				continue
			}

			sc.logger.Warn("Error reading from stream, will retry",
				zap.String("stream", sc.config.Stream),
				zap.Error(err),
				zap.Duration("retryIn", retryInterval))

			select {
			case <-time.After(retryInterval):
				retryInterval = min(retryInterval*2, sc.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		retryInterval = sc.config.RetryInterval

		for _, msg := range messages {
			if err := handler(ctx, msg); err != nil {
				sc.logger.Error("Error processing message",
					zap.String("stream", sc.config.Stream),
					zap.String("id", msg.ID),
					zap.Error(err))
			}
			sc.lastID = msg.ID
		}
	}
}

func (sc *StreamConsumer) readMessages(ctx context.Context) ([]Message, error) {
	streams, err := sc.reader.XRead(ctx,
		[]string{sc.config.Stream},
		[]string{sc.lastID},
		sc.config.Count,
		sc.config.Block,
	)
	if err != nil {
		return nil, err
	}

	var messages []Message
	for _, stream := range streams {
		for _, xmsg := range stream.Messages {
			messages = append(messages, Message{
				ID:     xmsg.ID,
				Stream: stream.Stream,
				Values: xmsg.Values,
			})
		}
	}
	return messages, nil
}

// GetData returns the "data" field, or nil if absent.
func (m *Message) GetData() []byte {
	if data, ok := m.Values["data"].(string); ok {
		return []byte(data)
	}
	if data, ok := m.Values["data"].([]byte); ok {
		return data
	}
	return nil
}

// GetKind returns the "kind" field, or "" if absent.
func (m *Message) GetKind() string {
	switch v := m.Values["kind"].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}
