package types

import (
	"context"
	"sync/atomic"

	"github.com/canopy-network/stakewatch/pkg/notify"
	"github.com/puzpuzpuz/xsync/v4"
)

// Topics carried by the hub.
const (
	TopicStaking       = "staking"
	TopicMarket        = "market"
	TopicNotifications = "notifications"
)

const hubBuffer = 128

// Message is one event pushed to websocket clients.
type Message struct {
	Topic   string      `json:"-"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Hub fans events out to websocket connections. Slow subscribers miss messages instead
// of blocking publishers.
type Hub struct {
	subs   *xsync.Map[uint64, chan Message]
	nextID atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subs: xsync.NewMap[uint64, chan Message]()}
}

// Subscribe returns a channel of hub messages and a function removing the subscription.
// The channel is never closed.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	id := h.nextID.Add(1)
	ch := make(chan Message, hubBuffer)
	h.subs.Store(id, ch)
	return ch, func() { h.subs.Delete(id) }
}

// Publish delivers msg to every subscriber with room in its buffer.
func (h *Hub) Publish(msg Message) {
	h.subs.Range(func(_ uint64, ch chan Message) bool {
		select {
		case ch <- msg:
		default:
		}
		return true
	})
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	return h.subs.Size()
}

// Notify makes the hub a notification sink.
func (h *Hub) Notify(_ context.Context, n notify.Notification) {
	h.Publish(Message{Topic: TopicNotifications, Type: "notification", Payload: n})
}
