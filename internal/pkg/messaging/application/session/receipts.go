package session

import (
	"context"

	"github.com/paulostering/burpp25-sub000/internal/infrastructure/metrics"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/usecase"
)

// ReceiptSync keeps read receipts in step with storage for one viewer.
//
// Both call patterns go through the same idempotent storage upsert, so the
// batch pass at open and a targeted call for a racing live insert may overlap
// on the same ids without coordination. Neither ever unmarks a message, and
// the viewer's own messages are never submitted.
type ReceiptSync struct {
	viewerID string
	mark     *usecase.MarkMessagesReadUseCase
}

func NewReceiptSync(viewerID string, mark *usecase.MarkMessagesReadUseCase) *ReceiptSync {
	return &ReceiptSync{viewerID: viewerID, mark: mark}
}

// unreadIncoming selects the messages the viewer still owes a receipt for.
func (r *ReceiptSync) unreadIncoming(msgs []messaging.Message) []messaging.Message {
	var out []messaging.Message
	for _, m := range msgs {
		if m.SenderID != r.viewerID && !m.IsRead {
			out = append(out, m)
		}
	}
	return out
}

// MarkBatch flips every unread incoming message in msgs with one storage
// call and returns the flipped ids. An empty selection makes no call at all.
func (r *ReceiptSync) MarkBatch(ctx context.Context, conversationID string, msgs []messaging.Message) ([]string, error) {
	pending := r.unreadIncoming(msgs)
	if len(pending) == 0 {
		return nil, nil
	}
	ids, err := r.mark.Execute(ctx, usecase.MarkMessagesReadInput{
		ConversationID: conversationID,
		Messages:       pending,
	})
	if err != nil {
		metrics.ReadReceipts.WithLabelValues("batch", "error").Inc()
		return nil, err
	}
	metrics.ReadReceipts.WithLabelValues("batch", "ok").Inc()
	return ids, nil
}

// MarkOne flips a single live-arriving message. Own or already-read messages
// are skipped without a storage call.
func (r *ReceiptSync) MarkOne(ctx context.Context, m messaging.Message) (bool, error) {
	if m.SenderID == r.viewerID || m.IsRead {
		return false, nil
	}
	_, err := r.mark.Execute(ctx, usecase.MarkMessagesReadInput{
		ConversationID: m.ConversationID,
		Messages:       []messaging.Message{m},
	})
	if err != nil {
		metrics.ReadReceipts.WithLabelValues("targeted", "error").Inc()
		return false, err
	}
	metrics.ReadReceipts.WithLabelValues("targeted", "ok").Inc()
	return true, nil
}
