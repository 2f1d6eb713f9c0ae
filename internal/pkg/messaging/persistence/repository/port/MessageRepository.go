package repository

import (
	"context"
	"time"

	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
)

// MessageRepository defines persistence operations for the messaging domain.
//
// Contract notes:
//   - GetConversation returns messaging.ErrNotFound (possibly wrapped) when
//     the id does not exist.
//   - ListMessages returns the full history ascending by (created_at, id);
//     that order is authoritative for rendering.
//   - MarkMessagesRead has upsert semantics: marking an already-read message
//     is a no-op, never an error, so batch and targeted callers may race on
//     the same ids.
//   - TouchConversation only ever advances last_message_at.
type MessageRepository interface {
	GetConversation(ctx context.Context, id string) (*messaging.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]messaging.Message, error)
	SaveMessage(ctx context.Context, m messaging.Message) (messaging.Message, error)
	MarkMessagesRead(ctx context.Context, conversationID string, ids []string) error
	TouchConversation(ctx context.Context, id string, at time.Time) error
}
