package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cacheport "github.com/paulostering/burpp25-sub000/internal/infrastructure/cache/port"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// conversationCacheTTL is short on purpose: metadata is denormalized display
// data and the inbox touch task invalidates eagerly anyway.
const conversationCacheTTL = 5 * time.Minute

// ConversationCacheKey is the cache key for one conversation's metadata.
func ConversationCacheKey(id string) string {
	return "conversation:meta:" + id
}

// GetConversationInput wraps the conversation identifier.
type GetConversationInput struct {
	ConversationID string
}

// GetConversationUseCase fetches conversation metadata, cache-aside.
// Hexagonal: depends on repository and cache ports only.
type GetConversationUseCase struct {
	Repo  repository.MessageRepository
	Cache cacheport.Cache
}

func NewGetConversationUseCase(repo repository.MessageRepository, cache cacheport.Cache) *GetConversationUseCase {
	return &GetConversationUseCase{Repo: repo, Cache: cache}
}

// Execute returns the conversation or messaging.ErrNotFound. Cache failures
// fall through to the repository; the cache is never load-bearing.
func (uc *GetConversationUseCase) Execute(ctx context.Context, in GetConversationInput) (*messaging.Conversation, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}

	key := ConversationCacheKey(in.ConversationID)
	if uc.Cache != nil {
		if raw, err := uc.Cache.Get(ctx, key); err == nil {
			var c messaging.Conversation
			if json.Unmarshal([]byte(raw), &c) == nil && c.ID == in.ConversationID {
				return &c, nil
			}
		}
	}

	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		if errors.Is(err, messaging.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if uc.Cache != nil {
		if raw, err := json.Marshal(conv); err == nil {
			_ = uc.Cache.Set(ctx, key, string(raw), conversationCacheTTL)
		}
	}
	return conv, nil
}
