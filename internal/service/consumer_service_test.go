package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"everlight-os/internal/websocket"
	"everlight-os/pkg/pipeline"
	"everlight-os/pkg/safety"
	"everlight-os/pkg/telemetry"
	"everlight-os/pkg/vault"
)

type nopLogger struct{}

func (nopLogger) Debug(string, string, map[string]interface{}) {}
func (nopLogger) Info(string, string, map[string]interface{})  {}
func (nopLogger) Warn(string, string, map[string]interface{})  {}
func (nopLogger) Error(string, string, map[string]interface{}) {}
func (nopLogger) Sync() error                                  { return nil }

type stubStore struct {
	blobs  map[string][]byte
	putErr error
}

func newStubStore() *stubStore {
	return &stubStore{blobs: make(map[string][]byte)}
}

func (s *stubStore) Put(_ context.Context, key string, blob []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.blobs[key] = blob
	return nil
}

func (s *stubStore) Get(_ context.Context, key string) ([]byte, error) {
	blob, ok := s.blobs[key]
	if !ok {
		return nil, vault.ErrNotFound
	}
	return blob, nil
}

func (s *stubStore) List(context.Context, string, int) ([]string, error) {
	return nil, nil
}

type stubDelivery struct {
	events []websocket.SessionEvent
}

func (d *stubDelivery) Send(_ string, event websocket.SessionEvent) {
	d.events = append(d.events, event)
}

func newEnvelopeMessage(t *testing.T, envType string, payload map[string]interface{}) *message.Message {
	t.Helper()
	blob, err := json.Marshal(sessionEnvelope{
		Type:      envType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), blob)
}

func newTestConsumer(sessions *pipeline.SessionStore, store *stubStore, delivery *stubDelivery) *consumerService {
	return NewConsumerService(nil, SessionTopic, "session_log", sessions, store, delivery, telemetry.NoopSink{}, nopLogger{}).(*consumerService)
}

func TestConsumerArchivesBlockedSessionWithDecision(t *testing.T) {
	sessions := pipeline.NewSessionStore(time.Minute)
	store := newStubStore()
	delivery := &stubDelivery{}
	consumer := newTestConsumer(sessions, store, delivery)

	session := &pipeline.Session{
		ID:     "user_1_20260828_120000",
		Status: pipeline.SessionBlocked,
		FinalResponse: &pipeline.Response{
			Status:    pipeline.SessionBlocked,
			SessionID: "user_1_20260828_120000",
			Safety: &safety.Decision{
				Approved: false,
				Reason:   "potentially harmful pattern detected",
			},
		},
	}
	sessions.Save(session)

	msg := newEnvelopeMessage(t, "SESSION_COMPLETED", map[string]interface{}{
		"session_id": session.ID,
		"user_id":    "user_1",
		"status":     pipeline.SessionBlocked,
	})
	consumer.processMessage(context.Background(), msg)

	blob, ok := store.blobs["session_log/user_1/user_1_20260828_120000.json"]
	require.True(t, ok, "blocked session should be archived to the session log")

	var archived pipeline.Session
	require.NoError(t, json.Unmarshal(blob, &archived))
	assert.Equal(t, pipeline.SessionBlocked, archived.Status)
	require.NotNil(t, archived.FinalResponse)
	require.NotNil(t, archived.FinalResponse.Safety)
	assert.Equal(t, "potentially harmful pattern detected", archived.FinalResponse.Safety.Reason)

	require.Len(t, delivery.events, 1)
	assert.Equal(t, pipeline.SessionBlocked, delivery.events[0].Status)
	assert.Zero(t, delivery.events[0].Confidence)

	select {
	case <-msg.Acked():
	default:
		t.Fatal("message should be acked after archival")
	}
}

func TestConsumerNacksWhenVaultUnavailable(t *testing.T) {
	sessions := pipeline.NewSessionStore(time.Minute)
	store := newStubStore()
	store.putErr = context.DeadlineExceeded
	consumer := newTestConsumer(sessions, store, &stubDelivery{})

	session := &pipeline.Session{ID: "user_1_20260828_120000", Status: pipeline.SessionCompleted}
	sessions.Save(session)

	msg := newEnvelopeMessage(t, "SESSION_COMPLETED", map[string]interface{}{
		"session_id": session.ID,
		"user_id":    "user_1",
		"status":     pipeline.SessionCompleted,
	})
	consumer.processMessage(context.Background(), msg)

	select {
	case <-msg.Nacked():
	default:
		t.Fatal("message should be nacked when the vault write fails")
	}
}

func TestConsumerAcksExpiredSession(t *testing.T) {
	sessions := pipeline.NewSessionStore(time.Minute)
	store := newStubStore()
	consumer := newTestConsumer(sessions, store, &stubDelivery{})

	msg := newEnvelopeMessage(t, "SESSION_COMPLETED", map[string]interface{}{
		"session_id": "unknown",
		"user_id":    "user_1",
		"status":     pipeline.SessionCompleted,
	})
	consumer.processMessage(context.Background(), msg)

	assert.Empty(t, store.blobs)
	select {
	case <-msg.Acked():
	default:
		t.Fatal("expired sessions are dropped with an ack")
	}
}
