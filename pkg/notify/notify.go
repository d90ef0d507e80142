package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Notification statuses.
const (
	StatusError   = "error"
	StatusWarning = "warning"
	StatusInfo    = "info"
)

// Channel is the Pub/Sub channel notifications are published on.
const Channel = "stakewatch:notifications"

// Notification is a transient message for the user.
type Notification struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Sink receives notifications. Implementations must not block the caller on delivery.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// Publisher is the subset of the Redis client used by RedisSink.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{})
}

// LogSink writes notifications to the logger.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{zap.String("status", n.Status), zap.String("message", n.Message)}
	switch n.Status {
	case StatusError:
		s.Logger.Error("User notification", fields...)
	case StatusWarning:
		s.Logger.Warn("User notification", fields...)
	default:
		s.Logger.Info("User notification", fields...)
	}
}

// RedisSink publishes notifications as JSON on Channel, best effort.
type RedisSink struct {
	Publisher Publisher
	Logger    *zap.Logger
}

func (s RedisSink) Notify(ctx context.Context, n Notification) {
	payload, err := json.Marshal(stamp(n))
	if err != nil {
		s.Logger.Warn("Failed to encode notification", zap.Error(err))
		return
	}
	s.Publisher.Publish(ctx, Channel, string(payload))
}

// Multi fans a notification out to every sink.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) {
	n = stamp(n)
	for _, s := range m {
		s.Notify(ctx, n)
	}
}

func stamp(n Notification) Notification {
	if n.Time.IsZero() {
		n.Time = time.Now().UTC()
	}
	return n
}
