package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil, nopLogger{})
	go hub.Run()
	return hub
}

func registerClient(t *testing.T, hub *Hub, userID string, buffer int) *Client {
	t.Helper()
	client := &Client{
		Hub:    hub,
		UserID: userID,
		Send:   make(chan []byte, buffer),
	}
	hub.register <- client
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients[userID]) > 0
	}, time.Second, 5*time.Millisecond)
	return client
}

func TestSendDeliversToEveryConnection(t *testing.T) {
	hub := newTestHub(t)
	first := registerClient(t, hub, "user_1", 8)
	second := registerClient(t, hub, "user_1", 8)
	other := registerClient(t, hub, "user_2", 8)

	hub.Send("user_1", SessionEvent{
		SessionID: "user_1_20260828_120000",
		UserID:    "user_1",
		Status:    "completed",
		Timestamp: time.Now().UTC(),
	})

	select {
	case msg := <-first.Send:
		assert.Contains(t, string(msg), "session_event")
	case <-time.After(time.Second):
		t.Fatal("first connection received nothing")
	}
	select {
	case <-second.Send:
	case <-time.After(time.Second):
		t.Fatal("second connection received nothing")
	}
	assert.Empty(t, other.Send)
}

func TestSendDropsSaturatedConnectionOnce(t *testing.T) {
	hub := newTestHub(t)
	// Zero-capacity buffer: the very first event saturates the client.
	client := registerClient(t, hub, "user_1", 0)

	event := SessionEvent{
		SessionID: "user_1_20260828_120000",
		UserID:    "user_1",
		Status:    "completed",
		Timestamp: time.Now().UTC(),
	}

	// The first send queues the stale client for removal; Run alone
	// closes the channel. A second send to the same user must not
	// close it again or write to the closed channel.
	hub.Send("user_1", event)
	hub.Send("user_1", event)

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients["user_1"]
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, open := <-client.Send
	assert.False(t, open, "hub should have closed the send channel exactly once")
}

func TestBroadcastDropsSaturatedConnections(t *testing.T) {
	hub := newTestHub(t)
	saturated := registerClient(t, hub, "user_1", 0)
	healthy := registerClient(t, hub, "user_2", 8)

	hub.Broadcast(SessionEvent{
		SessionID: "user_1_20260828_120000",
		UserID:    "user_1",
		Status:    "completed",
		Timestamp: time.Now().UTC(),
	})

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients["user_1"]
		return !ok
	}, time.Second, 5*time.Millisecond)

	select {
	case <-healthy.Send:
	case <-time.After(time.Second):
		t.Fatal("healthy connection received nothing")
	}
	_, open := <-saturated.Send
	assert.False(t, open)
}

func TestUnregisterTwiceIsSafe(t *testing.T) {
	hub := newTestHub(t)
	client := registerClient(t, hub, "user_1", 1)

	hub.unregister <- client
	hub.unregister <- client

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients["user_1"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}
