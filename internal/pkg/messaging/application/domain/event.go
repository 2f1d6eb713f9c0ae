package messaging

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the closed set of conversation events carried by
// the realtime channel.
type EventKind string

const (
	EventMessageInserted EventKind = "message.inserted"
	EventMessageUpdated  EventKind = "message.updated"
)

// Event is the envelope published on a conversation's topic. Every event
// carries the full message record, so consumers never need to re-fetch to
// apply one.
type Event struct {
	Kind    EventKind `json:"kind"`
	Message Message   `json:"message"`
}

// NewInsertedEvent wraps a freshly persisted message.
func NewInsertedEvent(m Message) Event {
	return Event{Kind: EventMessageInserted, Message: m}
}

// NewUpdatedEvent wraps a message whose mutable state changed (read receipt).
func NewUpdatedEvent(m Message) Event {
	return Event{Kind: EventMessageUpdated, Message: m}
}

// Encode serializes the event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses an envelope and rejects unknown kinds so downstream
// merge logic can match exhaustively.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("messaging: decode event: %w", err)
	}
	switch e.Kind {
	case EventMessageInserted, EventMessageUpdated:
	default:
		return Event{}, fmt.Errorf("messaging: unknown event kind %q", e.Kind)
	}
	if e.Message.ID == "" || e.Message.ConversationID == "" {
		return Event{}, fmt.Errorf("messaging: event missing message identity")
	}
	return e, nil
}
