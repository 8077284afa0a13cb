package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"everlight-os/internal/pkg/logger"
)

// SessionEvent is what the live feed carries: one pipeline session
// reaching a terminal status.
type SessionEvent struct {
	SessionID  string    `json:"session_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// delivery is one outbound payload; userID "*" targets every connection.
type delivery struct {
	userID string
	data   []byte
}

// Hub fans session events out to connected websocket clients. Each user
// may hold several connections (multi-device); cross-instance delivery
// rides a redis channel when redis is configured.
//
// All map mutation and every close of a client's Send channel happens in
// the Run goroutine, so a client is closed at most once and senders never
// race a close.
type Hub struct {
	// UserID -> connections for that user
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client
	deliver    chan delivery

	mu sync.RWMutex

	rdb *redis.Client

	logger logger.ILogger
}

const redisChannel = "session_events"

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "client unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()

		case d := <-h.deliver:
			h.dispatch(d)
		}
	}
}

// dispatch runs only in the Run goroutine.
func (h *Hub) dispatch(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if d.userID == "*" {
		for userID := range h.clients {
			h.flush(userID, d.data)
		}
		return
	}
	h.flush(d.userID, d.data)
}

// flush writes to every connection the user holds, dropping connections
// whose buffer is full. Caller holds the write lock.
func (h *Hub) flush(userID string, data []byte) {
	clients := h.clients[userID]
	kept := clients[:0]
	for _, client := range clients {
		select {
		case client.Send <- data:
			kept = append(kept, client)
		default:
			h.logger.Warn("Hub", "client send buffer full, dropping connection", map[string]interface{}{"user_id": userID})
			close(client.Send)
		}
	}
	if len(kept) == 0 {
		delete(h.clients, userID)
	} else {
		h.clients[userID] = kept
	}
}

// Send delivers a session event to every connection the user holds,
// here and on other instances via redis.
func (h *Hub) Send(userID string, event SessionEvent) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "session_event",
		"data": event,
	})

	h.deliver <- delivery{userID: userID, data: data}

	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_user_id": userID,
			"message":        json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), redisChannel, jsonPayload)
	}
}

// Broadcast delivers a session event to every connected client,
// regardless of user. Used by operational announcements.
func (h *Hub) Broadcast(event SessionEvent) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": "session_event",
		"data": event,
	})

	h.deliver <- delivery{userID: "*", data: data}

	if h.rdb != nil {
		payload := map[string]interface{}{
			"target_user_id": "*",
			"message":        json.RawMessage(data),
		}
		jsonPayload, _ := json.Marshal(payload)
		h.rdb.Publish(context.Background(), redisChannel, jsonPayload)
	}
}

// subscribeToRedis relays events published by other instances onto the
// local dispatch loop. "*" targets every local client.
func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetUserID string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}

		h.deliver <- delivery{userID: payload.TargetUserID, data: payload.Message}
	}
}
