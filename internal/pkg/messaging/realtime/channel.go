package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/paulostering/burpp25-sub000/internal/infrastructure/metrics"
	"github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
)

// Topic returns the pub/sub topic carrying events for one conversation.
func Topic(conversationID string) string {
	return "conversation.events." + conversationID
}

// Publish encodes an event and emits it on its conversation's topic.
func Publish(ctx context.Context, pub port.Publisher, ev messaging.Event) error {
	payload, err := ev.Encode()
	if err != nil {
		return err
	}
	return pub.Publish(ctx, Topic(ev.Message.ConversationID), payload)
}

// EventFunc receives one decoded message from the channel.
type EventFunc func(messaging.Message)

// Channel bridges a conversation's pub/sub subscription into two typed
// callbacks, one per event kind. It is scoped to exactly one conversation id;
// frames that fail to decode or belong elsewhere are dropped and counted.
//
// Delivery is at-least-once and insert/update ordering is not guaranteed
// across the two kinds; subscribers own idempotent merging.
type Channel struct {
	conversationID string
	sub            port.Subscription
	once           sync.Once
}

// Subscribe opens a filtered subscription for conversationID and starts
// dispatching events until Unsubscribe is called or the transport feed ends.
func Subscribe(ctx context.Context, subscriber port.Subscriber, conversationID string, onInsert, onUpdate EventFunc) (*Channel, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("realtime: conversation id is required")
	}
	sub, err := subscriber.Subscribe(ctx, Topic(conversationID))
	if err != nil {
		return nil, fmt.Errorf("realtime: subscribe: %w", err)
	}
	ch := &Channel{conversationID: conversationID, sub: sub}
	go ch.dispatch(onInsert, onUpdate)
	return ch, nil
}

// Unsubscribe releases the subscription. Safe to call multiple times.
func (ch *Channel) Unsubscribe() {
	ch.once.Do(func() {
		_ = ch.sub.Close()
	})
}

func (ch *Channel) dispatch(onInsert, onUpdate EventFunc) {
	for payload := range ch.sub.Events() {
		ev, err := messaging.DecodeEvent(payload)
		if err != nil {
			metrics.ChannelEvents.WithLabelValues("unknown", "dropped").Inc()
			continue
		}
		if ev.Message.ConversationID != ch.conversationID {
			metrics.ChannelEvents.WithLabelValues(string(ev.Kind), "dropped").Inc()
			continue
		}
		switch ev.Kind {
		case messaging.EventMessageInserted:
			onInsert(ev.Message)
		case messaging.EventMessageUpdated:
			onUpdate(ev.Message)
		}
		metrics.ChannelEvents.WithLabelValues(string(ev.Kind), "dispatched").Inc()
	}
}
