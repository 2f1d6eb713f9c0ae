package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
	messaging "github.com/paulostering/burpp25-sub000/internal/pkg/messaging/application/domain"
)

type memSub struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func (s *memSub) Events() <-chan []byte { return s.ch }

func (s *memSub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

func (s *memSub) push(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.ch <- p
	}
}

type memSubscriber struct {
	mu     sync.Mutex
	topics []string
	last   *memSub
}

func (b *memSubscriber) Subscribe(ctx context.Context, topic string) (port.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.last = &memSub{ch: make(chan []byte, 16)}
	return b.last, nil
}

type recorder struct {
	mu      sync.Mutex
	inserts []messaging.Message
	updates []messaging.Message
}

func (r *recorder) onInsert(m messaging.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts = append(r.inserts, m)
}

func (r *recorder) onUpdate(m messaging.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, m)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inserts), len(r.updates)
}

func encoded(t *testing.T, ev messaging.Event) []byte {
	t.Helper()
	p, err := ev.Encode()
	require.NoError(t, err)
	return p
}

func TestSubscribeUsesConversationScopedTopic(t *testing.T) {
	sub := &memSubscriber{}
	rec := &recorder{}
	ch, err := Subscribe(context.Background(), sub, "conv-1", rec.onInsert, rec.onUpdate)
	require.NoError(t, err)
	defer ch.Unsubscribe()

	assert.Equal(t, []string{"conversation.events.conv-1"}, sub.topics)
}

func TestSubscribeRequiresConversationID(t *testing.T) {
	sub := &memSubscriber{}
	_, err := Subscribe(context.Background(), sub, "", nil, nil)
	assert.Error(t, err)
	assert.Empty(t, sub.topics)
}

func TestDispatchRoutesByKind(t *testing.T) {
	sub := &memSubscriber{}
	rec := &recorder{}
	ch, err := Subscribe(context.Background(), sub, "conv-1", rec.onInsert, rec.onUpdate)
	require.NoError(t, err)
	defer ch.Unsubscribe()

	m := messaging.Message{ID: "m1", ConversationID: "conv-1", SenderID: "u1", Body: "hi", CreatedAt: time.Now()}
	sub.last.push(encoded(t, messaging.NewInsertedEvent(m)))
	m.IsRead = true
	sub.last.push(encoded(t, messaging.NewUpdatedEvent(m)))

	assert.Eventually(t, func() bool {
		ins, ups := rec.counts()
		return ins == 1 && ups == 1
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "m1", rec.inserts[0].ID)
	assert.False(t, rec.inserts[0].IsRead)
	assert.True(t, rec.updates[0].IsRead)
}

func TestDispatchDropsMalformedAndForeignFrames(t *testing.T) {
	sub := &memSubscriber{}
	rec := &recorder{}
	ch, err := Subscribe(context.Background(), sub, "conv-1", rec.onInsert, rec.onUpdate)
	require.NoError(t, err)
	defer ch.Unsubscribe()

	sub.last.push([]byte("not json"))
	sub.last.push([]byte(`{"kind":"message.vanished","message":{"id":"x","conversation_id":"conv-1"}}`))
	other := messaging.Message{ID: "mx", ConversationID: "conv-2", SenderID: "u1", Body: "stray", CreatedAt: time.Now()}
	sub.last.push(encoded(t, messaging.NewInsertedEvent(other)))
	good := messaging.Message{ID: "m1", ConversationID: "conv-1", SenderID: "u1", Body: "hi", CreatedAt: time.Now()}
	sub.last.push(encoded(t, messaging.NewInsertedEvent(good)))

	assert.Eventually(t, func() bool {
		ins, _ := rec.counts()
		return ins == 1
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.inserts, 1)
	assert.Equal(t, "m1", rec.inserts[0].ID)
	assert.Empty(t, rec.updates)
}

func TestUnsubscribeIsIdempotentAndEndsDispatch(t *testing.T) {
	sub := &memSubscriber{}
	rec := &recorder{}
	ch, err := Subscribe(context.Background(), sub, "conv-1", rec.onInsert, rec.onUpdate)
	require.NoError(t, err)

	ch.Unsubscribe()
	ch.Unsubscribe()

	// The feed is closed; late pushes are discarded by the fake, and the
	// dispatch goroutine has nothing left to deliver.
	sub.last.push(encoded(t, messaging.NewInsertedEvent(messaging.Message{ID: "late", ConversationID: "conv-1"})))
	time.Sleep(20 * time.Millisecond)
	ins, ups := rec.counts()
	assert.Zero(t, ins)
	assert.Zero(t, ups)
}

func TestPublishTargetsMessageConversationTopic(t *testing.T) {
	pub := &capturePublisher{}
	m := messaging.Message{ID: "m1", ConversationID: "conv-9", SenderID: "u1", Body: "hi", CreatedAt: time.Now()}
	require.NoError(t, Publish(context.Background(), pub, messaging.NewInsertedEvent(m)))

	require.Len(t, pub.calls, 1)
	assert.Equal(t, "conversation.events.conv-9", pub.calls[0].topic)
	ev, err := messaging.DecodeEvent(pub.calls[0].payload)
	require.NoError(t, err)
	assert.Equal(t, messaging.EventMessageInserted, ev.Kind)
	assert.Equal(t, "m1", ev.Message.ID)
}

type capturePublisher struct {
	calls []struct {
		topic   string
		payload []byte
	}
}

func (p *capturePublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.calls = append(p.calls, struct {
		topic   string
		payload []byte
	}{topic, payload})
	return nil
}
