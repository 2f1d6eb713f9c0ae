package messaging

import (
	"errors"
	"strings"
	"time"
)

// MessageType tags the content kind of a message.
// Only "text" is produced today; the field stays open for richer types.
type MessageType string

const (
	MessageTypeText MessageType = "text"
)

// Domain-level errors for messaging behaviors
var (
	ErrEmptyMessage   = errors.New("messaging: empty message body")
	ErrNotFound       = errors.New("messaging: conversation not found")
	ErrNotParticipant = errors.New("messaging: user is not a participant in the conversation")
)

// Message is an immutable log entry in a conversation. After creation only
// IsRead may change, and only from false to true.
type Message struct {
	ID             string      `db:"id" json:"id"`
	ConversationID string      `db:"conversation_id" json:"conversation_id"`
	SenderID       string      `db:"sender_id" json:"sender_id"`
	Body           string      `db:"body" json:"body"`
	MsgType        MessageType `db:"msg_type" json:"msg_type"`
	IsRead         bool        `db:"is_read" json:"is_read"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// NewMessage validates and normalizes a message ready to persist.
// ID and CreatedAt are left for storage to assign.
func NewMessage(conversationID, senderID, body string) (*Message, error) {
	if conversationID == "" || senderID == "" {
		return nil, errors.New("messaging: conversation_id and sender_id are required")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	return &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		MsgType:        MessageTypeText,
	}, nil
}

// Before reports whether m sorts ahead of other in display order:
// ascending CreatedAt with ID as the tie-break.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
