package task

import (
	"context"
	"encoding/json"
	"time"

	cacheport "github.com/paulostering/burpp25-sub000/internal/infrastructure/cache/port"
	qport "github.com/paulostering/burpp25-sub000/internal/infrastructure/queue/port"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// ConversationTouchTaskType is the queue task name for the inbox
// denormalization performed after each message send.
const ConversationTouchTaskType = "messaging:conversation_touch"

// ConversationTouchPayload is the JSON payload transported via the queue.
type ConversationTouchPayload struct {
	ConversationID string    `json:"conversationId"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
}

// EnqueueConversationTouch schedules the inbox touch for a conversation.
// UniqueTTL squashes bursts from rapid consecutive sends.
func EnqueueConversationTouch(ctx context.Context, client qport.Client, conversationID string, at time.Time) error {
	b, err := json.Marshal(ConversationTouchPayload{ConversationID: conversationID, LastMessageAt: at})
	if err != nil {
		return err
	}
	_, err = client.Enqueue(ctx, qport.Task{Type: ConversationTouchTaskType, Payload: b}, qport.EnqueueOption{
		Queue:     "messaging",
		MaxRetry:  10,
		UniqueTTL: time.Second,
	})
	return err
}

// RegisterConversationTouchTask binds the task handler to the provided server.
// The handler advances conversation.last_message_at (monotonic, so retries
// and reordered deliveries are harmless) and drops the cached metadata entry.
func RegisterConversationTouchTask(srv qport.Server, repo repository.MessageRepository, cache cacheport.Cache, cacheKey func(string) string) {
	srv.Register(ConversationTouchTaskType, func(ctx context.Context, t qport.Task) error {
		var p ConversationTouchPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// malformed payload: retrying cannot help
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := repo.TouchConversation(ctx, p.ConversationID, p.LastMessageAt); err != nil {
			return err
		}
		if cache != nil && cacheKey != nil {
			_, _ = cache.Del(ctx, cacheKey(p.ConversationID))
		}
		return nil
	})
}
