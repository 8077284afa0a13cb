package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"everlight-os/internal/pkg/logger"
	"everlight-os/internal/websocket"
	"everlight-os/pkg/events"
	"everlight-os/pkg/pipeline"
	"everlight-os/pkg/telemetry"
	"everlight-os/pkg/vault"
)

// SessionDelivery pushes real-time session updates. Implemented by the
// websocket Hub.
type SessionDelivery interface {
	Send(userID string, event websocket.SessionEvent)
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the session topic: every completed session is
// archived to the vault and pushed to the live feed.
type consumerService struct {
	pubSub   *gochannel.GoChannel
	topic    string
	logDir   string
	sessions *pipeline.SessionStore
	store    vault.ObjectStore
	delivery SessionDelivery
	sink     telemetry.Sink
	logger   logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topic string,
	logDir string,
	sessions *pipeline.SessionStore,
	store vault.ObjectStore,
	delivery SessionDelivery,
	sink telemetry.Sink,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:   pubSub,
		topic:    topic,
		logDir:   logDir,
		sessions: sessions,
		store:    store,
		delivery: delivery,
		sink:     sink,
		logger:   log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var envelope sessionEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		cs.logger.Error("Consumer", "malformed envelope", map[string]interface{}{"error": err.Error()})
		msg.Ack() // poison message, do not retry
		return
	}
	if envelope.Type != events.TypeSessionCompleted {
		msg.Ack()
		return
	}

	sessionID, _ := envelope.Payload["session_id"].(string)
	userID, _ := envelope.Payload["user_id"].(string)
	status, _ := envelope.Payload["status"].(string)

	session, found := cs.sessions.Find(sessionID)
	if !found {
		cs.logger.Warn("Consumer", "session expired before archival", map[string]interface{}{
			"session_id": sessionID,
		})
		msg.Ack()
		return
	}

	blob, err := json.Marshal(session)
	if err != nil {
		cs.logger.Error("Consumer", "session marshal failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		msg.Ack()
		return
	}

	key := fmt.Sprintf("%s/%s/%s.json", cs.logDir, userID, sessionID)
	if err := cs.store.Put(ctx, key, blob); err != nil {
		cs.logger.Error("Consumer", "session archive failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		msg.Nack() // retriable
		return
	}

	event := websocket.SessionEvent{
		SessionID: sessionID,
		UserID:    userID,
		Status:    status,
		Timestamp: envelope.Timestamp,
	}
	if session.FinalResponse != nil && session.FinalResponse.Consensus != nil {
		event.Confidence = session.FinalResponse.Consensus.Confidence
	}
	if cs.delivery != nil {
		cs.delivery.Send(userID, event)
	}

	cs.sink.Emit("EverLight/Pipeline", "SessionsArchived", 1, "Count",
		map[string]string{"status": status})
	msg.Ack()
}
