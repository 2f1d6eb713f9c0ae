package usecase

import (
	"context"
	"fmt"

	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
)

// GetMessageInput carries parameters to fetch a conversation's history.
type GetMessageInput struct {
	ConversationID string
}

// GetMessageUseCase fetches the full message history for a conversation,
// ascending by creation time. Hexagonal: depends only on the repository port.
type GetMessageUseCase struct {
	Repo repository.MessageRepository
}

func NewGetMessageUseCase(repo repository.MessageRepository) *GetMessageUseCase {
	return &GetMessageUseCase{Repo: repo}
}

// Execute returns the ordered history for the conversation.
func (uc *GetMessageUseCase) Execute(ctx context.Context, in GetMessageInput) ([]messaging.Message, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}
	msgs, err := uc.Repo.ListMessages(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msgs, nil
}
