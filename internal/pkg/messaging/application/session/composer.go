package session

import (
	"context"
	"errors"
	"sync"

	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
	"github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/usecase"
)

// ErrSendInFlight rejects overlapping sends from one composer, which is what
// keeps a double key-press from producing two rows.
var ErrSendInFlight = errors.New("messaging: a send is already in flight")

// Composer is the per-viewer send pipeline. It validates input before any
// network call, allows a single in-flight send, and never mutates the
// conversation view itself: the channel event (or the session's reconcile
// refetch) is what surfaces the new message.
type Composer struct {
	viewerID string
	send     *usecase.SendMessageUseCase

	mu       sync.Mutex
	inflight bool
}

func NewComposer(viewerID string, send *usecase.SendMessageUseCase) *Composer {
	return &Composer{viewerID: viewerID, send: send}
}

// Send submits one outgoing message. Blank-after-trim content and overlapping
// sends are rejected locally with no network call. On persistence failure the
// error is returned for the caller to surface; the caller keeps the input for
// a manual retry, there is no automatic one.
func (c *Composer) Send(ctx context.Context, conversationID, content string) (messaging.Message, error) {
	// Validate before taking the in-flight slot so a blank submit does not
	// block a real one.
	if _, err := messaging.NewMessage(conversationID, c.viewerID, content); err != nil {
		return messaging.Message{}, err
	}

	c.mu.Lock()
	if c.inflight {
		c.mu.Unlock()
		return messaging.Message{}, ErrSendInFlight
	}
	c.inflight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inflight = false
		c.mu.Unlock()
	}()

	stored, err := c.send.Execute(ctx, usecase.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       c.viewerID,
		Body:           content,
	})
	if err != nil {
		return messaging.Message{}, err
	}
	return *stored, nil
}
