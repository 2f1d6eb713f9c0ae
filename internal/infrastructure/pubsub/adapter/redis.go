package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/paulostering/burpp25-sub000/internal/infrastructure/pubsub/port"
)

// RedisBroker is an adapter that satisfies the port.Broker interface using
// Redis Pub/Sub. go-redis handles reconnection internally; events published
// while a subscriber is disconnected are not replayed.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker constructs a RedisBroker using the REDIS_URL environment variable.
func NewRedisBroker() (*RedisBroker, error) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil, errors.New("pubsub: REDIS_URL environment variable is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("pubsub: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("pubsub: ping: %w", err)
	}
	return &RedisBroker{client: c}, nil
}

// Ensure interface compliance at compile time
var _ port.Broker = (*RedisBroker)(nil)

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (port.Subscription, error) {
	ps := b.client.Subscribe(ctx, topic)
	// Force the SUBSCRIBE round-trip so failures surface here rather than
	// silently on the event channel.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("pubsub: subscribe %s: %w", topic, err)
	}

	sub := &redisSubscription{ps: ps, events: make(chan []byte, 64)}
	go sub.pump()
	return sub, nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan []byte
	once   sync.Once
}

func (s *redisSubscription) Events() <-chan []byte { return s.events }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
	})
	return err
}

func (s *redisSubscription) pump() {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		s.events <- []byte(msg.Payload)
	}
}
