package events

import "time"

const (
	TimelineOpened      = "TIMELINE_OPENED"
	TimelineClosed      = "TIMELINE_CLOSED"
	TimelineNewMessages = "TIMELINE_NEW_MESSAGES"
	// MessageCreated is emitted by the conversation side when a client or
	// the assistant writes a message.
	MessageCreated = "MESSAGE_CREATED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TIMELINE_OPENED").
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

// StringField reads a string value from the payload.
func StringField(e Event, key string) (string, bool) {
	v, ok := e.Payload()[key].(string)
	return v, ok && v != ""
}

func NewTimelineEvent(eventType, practitionerID, clientID string, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"practitioner_id": practitionerID,
		"client_id":       clientID,
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
