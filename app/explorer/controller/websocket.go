package controller

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/canopy-network/stakewatch/app/explorer/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Topic  string `json:"topic"`  // "staking", "market", "notifications" or "*"
}

// topicSubscriptions tracks which hub topics a client wants.
type topicSubscriptions struct {
	mu     sync.RWMutex
	topics map[string]bool
}

func newTopicSubscriptions() *topicSubscriptions {
	return &topicSubscriptions{topics: make(map[string]bool)}
}

func (ts *topicSubscriptions) subscribe(topic string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.topics[topic] = true
}

func (ts *topicSubscriptions) unsubscribe(topic string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.topics, topic)
}

// isSubscribed reports whether topic is wanted. "*" matches every topic.
func (ts *topicSubscriptions) isSubscribed(topic string) bool {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.topics["*"] || ts.topics[topic]
}

func validTopic(topic string) bool {
	switch topic {
	case "*", types.TopicStaking, types.TopicMarket, types.TopicNotifications:
		return true
	}
	return false
}

// HandleWebSocket upgrades the connection and streams hub events.
//
// Client sends: {"action": "subscribe", "topic": "staking"}
// Client sends: {"action": "unsubscribe", "topic": "*"}
//
// Server sends {"type": "<event>", "payload": {...}} for every hub message on a subscribed
// topic, plus "subscribed", "unsubscribed" and "error" replies.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func(conn *websocket.Conn) {
		if err := conn.Close(); err != nil {
			c.App.Logger.Debug("Failed to close WebSocket connection", zap.Error(err))
		}
	}(conn)

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newTopicSubscriptions()
	send := make(chan types.Message, 256)
	events, unsubscribe := c.App.Hub.Subscribe()
	defer unsubscribe()

	var wg sync.WaitGroup
	c.goRecover(&wg, cancel, r.RemoteAddr, "hub forwarder", func() { c.forwardHub(ctx, events, send, subs) })
	c.goRecover(&wg, cancel, r.RemoteAddr, "ping ticker", func() { c.sendPings(ctx, conn) })
	c.goRecover(&wg, cancel, r.RemoteAddr, "message writer", func() { c.writeMessages(ctx, conn, send) })

	// blocks until the connection closes
	c.readClientMessages(ctx, conn, cancel, subs, send)
	cancel()
	wg.Wait()

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (c *Controller) goRecover(wg *sync.WaitGroup, cancel context.CancelFunc, remote, name string, fn func()) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				c.App.Logger.Error("Panic in WebSocket goroutine",
					zap.String("goroutine", name),
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("remote_addr", remote))
				cancel()
			}
		}()
		fn()
	}()
}

// forwardHub copies hub messages on subscribed topics to the send channel.
func (c *Controller) forwardHub(ctx context.Context, events <-chan types.Message, send chan<- types.Message, subs *topicSubscriptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-events:
			if !subs.isSubscribed(msg.Topic) {
				continue
			}
			select {
			case send <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// sendPings sends periodic ping frames; the client's pong resets the read deadline.
func (c *Controller) sendPings(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				c.App.Logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// writeMessages is the only writer of data frames on conn.
func (c *Controller) writeMessages(ctx context.Context, conn *websocket.Conn, send <-chan types.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-send:
			if err := conn.WriteJSON(msg); err != nil {
				c.App.Logger.Debug("Failed to write WebSocket message", zap.Error(err))
				return
			}
		}
	}
}

func (c *Controller) reply(ctx context.Context, send chan<- types.Message, msg types.Message) {
	select {
	case send <- msg:
	case <-ctx.Done():
	}
}

// readClientMessages handles subscription requests and detects connection closure.
func (c *Controller) readClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *topicSubscriptions, send chan<- types.Message) {
	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		c.App.Logger.Error("Failed to set read deadline", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.App.Logger.Warn("WebSocket read error", zap.Error(err))
			}
			cancel()
			return
		}
		if ctx.Err() != nil {
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			return
		}

		if !validTopic(msg.Topic) {
			c.reply(ctx, send, types.Message{Type: "error", Payload: map[string]string{"message": "unknown topic: " + msg.Topic}})
			continue
		}
		switch msg.Action {
		case "subscribe":
			subs.subscribe(msg.Topic)
			c.reply(ctx, send, types.Message{Type: "subscribed", Payload: map[string]string{"topic": msg.Topic}})
		case "unsubscribe":
			subs.unsubscribe(msg.Topic)
			c.reply(ctx, send, types.Message{Type: "unsubscribed", Payload: map[string]string{"topic": msg.Topic}})
		default:
			c.reply(ctx, send, types.Message{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}})
		}
	}
}
