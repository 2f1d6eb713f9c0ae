package usecase

import (
	"context"
	"fmt"
	"log"

	pubsubport "github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/realtime"
)

// MarkMessagesReadInput names the messages to flip. Callers pass the full
// records so the resulting update events can carry them.
type MarkMessagesReadInput struct {
	ConversationID string
	Messages       []messaging.Message
}

// MarkMessagesReadUseCase flips is_read for a set of messages and publishes
// one update event per flipped message so the counterpart's session renders
// the receipt live. The storage update is an idempotent upsert; re-marking an
// already-read message is a safe no-op.
type MarkMessagesReadUseCase struct {
	Repo repository.MessageRepository
	Pub  pubsubport.Publisher
}

func NewMarkMessagesReadUseCase(repo repository.MessageRepository, pub pubsubport.Publisher) *MarkMessagesReadUseCase {
	return &MarkMessagesReadUseCase{Repo: repo, Pub: pub}
}

// Execute returns the ids that were submitted once storage confirms. On error
// nothing is reported flipped: local state must not outrun persisted state.
func (uc *MarkMessagesReadUseCase) Execute(ctx context.Context, in MarkMessagesReadInput) ([]string, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}
	if len(in.Messages) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(in.Messages))
	for _, m := range in.Messages {
		ids = append(ids, m.ID)
	}

	if err := uc.Repo.MarkMessagesRead(ctx, in.ConversationID, ids); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if uc.Pub != nil {
		for _, m := range in.Messages {
			m.IsRead = true
			if err := realtime.Publish(ctx, uc.Pub, messaging.NewUpdatedEvent(m)); err != nil {
				log.Printf("mark read: publish update event: %v", err)
			}
		}
	}
	return ids, nil
}
