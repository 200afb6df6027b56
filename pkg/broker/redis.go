package broker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBroker uses Redis pub/sub. Pattern subscriptions are made with PSUBSCRIBE
// globs and re-checked against the MQTT pattern on delivery since a glob *
// also matches across levels.
type RedisBroker struct {
	client            *redis.Client
	reconnectInterval time.Duration

	subs subscriptions

	mutex     sync.Mutex
	pubsub    *redis.PubSub
	connected bool
	closed    bool
	done      chan struct{}
}

func NewRedisBroker(client *redis.Client, reconnectInterval time.Duration) *RedisBroker {
	return &RedisBroker{
		client:            client,
		reconnectInterval: reconnectInterval,
		done:              make(chan struct{}),
	}
}

func (b *RedisBroker) Connect(ctx context.Context) error {
	retry := backoff.WithContext(backoff.NewConstantBackOff(b.reconnectInterval), ctx)

	err := backoff.RetryNotify(func() error {
		return b.client.Ping(ctx).Err()
	}, retry, func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("retry", wait.String()).Msg("Redis broker not reachable")
	})
	if err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.connected = true

	log.Info().Str("address", b.client.Options().Addr).Msg("Redis broker connected")

	return nil
}

func (b *RedisBroker) Subscribe(pattern string, handler Handler) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrClosed
	}
	if !b.connected {
		return ErrNotConnected
	}

	native := redisPattern(pattern)
	b.subs.add(subscription{pattern: pattern, native: native, handler: handler})

	ctx := context.Background()

	if b.pubsub == nil {
		b.pubsub = b.client.PSubscribe(ctx, native)

		// Wait for the subscription confirmation so nothing published after this returns is missed
		if _, err := b.pubsub.Receive(ctx); err != nil {
			b.pubsub.Close()
			b.pubsub = nil
			return err
		}

		go b.receive(b.pubsub.Channel())
		return nil
	}

	return b.pubsub.PSubscribe(ctx, native)
}

func (b *RedisBroker) receive(messages <-chan *redis.Message) {
	for {
		select {
		case <-b.done:
			return
		case message, ok := <-messages:
			if !ok {
				return
			}

			b.subs.dispatch(message.Pattern, Message{
				Topic:   message.Channel,
				Payload: []byte(message.Payload),
			})
		}
	}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mutex.Lock()
	connected, closed := b.connected, b.closed
	b.mutex.Unlock()

	if closed {
		return ErrClosed
	}
	if !connected {
		return ErrNotConnected
	}

	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *RedisBroker) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.connected = false
	close(b.done)

	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}

func redisPattern(pattern string) string {
	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		if level == "+" || level == "#" {
			levels[i] = "*"
		}
	}
	return strings.Join(levels, "/")
}
