package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/paulostering/burpp25-sub000/internal/infrastructure/metrics"
	pubsubport "github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	qport "github.com/paulostering/burpp25-sub000/internal/infrastructure/queue/port"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/task"
	repository "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/persistence/repository/port"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/realtime"
)

// SendMessageInput carries the data needed to send a new message.
type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Body           string
}

// SendMessageUseCase persists one outgoing message and fans it out.
// Hexagonal: depends on repository, publisher and queue ports.
//
// After a successful insert it publishes the insert event to the
// conversation's topic (best effort; the sender's own reconcile refetch is
// the safety net) and enqueues the inbox touch task.
type SendMessageUseCase struct {
	Repo  repository.MessageRepository
	Pub   pubsubport.Publisher
	Queue qport.Client
}

func NewSendMessageUseCase(repo repository.MessageRepository, pub pubsubport.Publisher, queue qport.Client) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, Pub: pub, Queue: queue}
}

// Execute validates, persists and fans out a new message. The stored message
// (with storage-assigned id and created_at) is returned; the caller must not
// assume it is the next message in display order.
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*messaging.Message, error) {
	m, err := messaging.NewMessage(in.ConversationID, in.SenderID, in.Body)
	if err != nil {
		return nil, err
	}

	conv, err := uc.Repo.GetConversation(ctx, in.ConversationID)
	if err != nil {
		if errors.Is(err, messaging.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, messaging.ErrNotParticipant
	}

	stored, err := uc.Repo.SaveMessage(ctx, *m)
	if err != nil {
		metrics.MessagesSent.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesSent.WithLabelValues("ok").Inc()

	if uc.Pub != nil {
		if err := realtime.Publish(ctx, uc.Pub, messaging.NewInsertedEvent(stored)); err != nil {
			log.Printf("send message: publish insert event: %v", err)
		}
	}
	if uc.Queue != nil {
		if err := task.EnqueueConversationTouch(ctx, uc.Queue, stored.ConversationID, stored.CreatedAt); err != nil {
			log.Printf("send message: enqueue inbox touch: %v", err)
		}
	}
	return &stored, nil
}
