package controller

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/canopy-network/stakewatch/app/explorer/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsReply struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var reply wsReply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

// TestHandleWebSocket_TopicFilter tests that only subscribed topics are forwarded
func TestHandleWebSocket_TopicFilter(t *testing.T) {
	env := setupTestController(t)
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Topic: types.TopicMarket}))
	reply := readReply(t, conn)
	assert.Equal(t, "subscribed", reply.Type)
	assert.Equal(t, types.TopicMarket, reply.Payload["topic"])

	env.c.App.Hub.Publish(types.Message{Topic: types.TopicStaking, Type: "staking.partition", Payload: map[string]string{}})
	env.c.App.Hub.Publish(types.Message{Topic: types.TopicMarket, Type: "market.watch", Payload: map[string]string{"added": "QmA"}})

	reply = readReply(t, conn)
	assert.Equal(t, "market.watch", reply.Type)
	assert.Equal(t, "QmA", reply.Payload["added"])
}

// TestHandleWebSocket_InvalidRequests tests error replies for unknown topics and actions
func TestHandleWebSocket_InvalidRequests(t *testing.T) {
	env := setupTestController(t)
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Topic: "blocks"}))
	reply := readReply(t, conn)
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Payload["message"], "unknown topic")

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "listen", Topic: "*"}))
	reply = readReply(t, conn)
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Payload["message"], "unknown action")
}

// TestTopicSubscriptions tests wildcard and per-topic subscriptions
func TestTopicSubscriptions(t *testing.T) {
	subs := newTopicSubscriptions()
	assert.False(t, subs.isSubscribed(types.TopicStaking))

	subs.subscribe(types.TopicStaking)
	assert.True(t, subs.isSubscribed(types.TopicStaking))
	assert.False(t, subs.isSubscribed(types.TopicMarket))

	subs.subscribe("*")
	assert.True(t, subs.isSubscribed(types.TopicMarket))

	subs.unsubscribe("*")
	subs.unsubscribe(types.TopicStaking)
	assert.False(t, subs.isSubscribed(types.TopicStaking))
}
