package events

import "time"

// Event is the contract for everything published on the bus.
type Event interface {
	// EventType returns the unique code for this event (e.g. "SESSION_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

const (
	TypeSessionCompleted = "SESSION_COMPLETED"
	TypeMetric           = "METRIC"
)

// NewSessionCompleted announces a finished pipeline session.
func NewSessionCompleted(sessionID, userID, status string) Event {
	return BaseEvent{
		Type: TypeSessionCompleted,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"user_id":    userID,
			"status":     status,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// NewMetric wraps one telemetry datapoint for the bus.
func NewMetric(namespace, name string, value float64, unit string, dimensions map[string]string) Event {
	return BaseEvent{
		Type: TypeMetric,
		Data: map[string]interface{}{
			"namespace":  namespace,
			"metric":     name,
			"value":      value,
			"unit":       unit,
			"dimensions": dimensions,
		},
		OccurredAt: time.Now().UTC(),
	}
}
