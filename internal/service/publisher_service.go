package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"everlight-os/pkg/events"
)

// SessionTopic carries completed-session envelopes between the
// pipeline and the in-process consumers.
const SessionTopic = "pipeline.sessions"

// sessionEnvelope is the wire form of an event on the channel.
type sessionEnvelope struct {
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

type IPublisherService interface {
	Publish(event events.Event) error
}

type publisherService struct {
	pubSub *gochannel.GoChannel
	topic  string
}

func NewPublisherService(pubSub *gochannel.GoChannel, topic string) IPublisherService {
	return &publisherService{pubSub: pubSub, topic: topic}
}

func (p *publisherService) Publish(event events.Event) error {
	payload, err := json.Marshal(sessionEnvelope{
		Type:      event.EventType(),
		Payload:   event.Payload(),
		Timestamp: event.Timestamp(),
	})
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", event.EventType(), err)
	}
	return p.pubSub.Publish(p.topic, message.NewMessage(watermill.NewUUID(), payload))
}
