package port

import "context"

// Publisher emits an opaque payload on a topic. Delivery to subscribers is
// at-least-once from the application's point of view; consumers must merge
// idempotently.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscription is a live feed for one topic. Events() is closed when the
// subscription ends, whether by Close or by transport failure. Close is
// idempotent.
type Subscription interface {
	Events() <-chan []byte
	Close() error
}

// Subscriber opens topic-scoped subscriptions. Implementations own transport
// reconnection; this port does not promise redelivery of events missed during
// a gap.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Broker combines both sides for callers that need them together.
type Broker interface {
	Publisher
	Subscriber
}
