package broker

import (
	"context"
	"sync"
)

// MemoryBroker delivers messages inside one process on the publishing goroutine.
// It backs single replica deployments and tests. Handlers may publish again.
type MemoryBroker struct {
	subs subscriptions

	mutex     sync.Mutex
	connected bool
	closed    bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

func (b *MemoryBroker) Connect(ctx context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.connected = true
	return nil
}

func (b *MemoryBroker) Subscribe(pattern string, handler Handler) error {
	if err := b.ready(); err != nil {
		return err
	}

	b.subs.add(subscription{pattern: pattern, native: pattern, handler: handler})
	return nil
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := Message{Topic: topic, Payload: append([]byte(nil), payload...)}

	b.subs.dispatch("", message)
	return nil
}

func (b *MemoryBroker) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.closed = true
	b.connected = false
	return nil
}

func (b *MemoryBroker) ready() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrClosed
	}
	if !b.connected {
		return ErrNotConnected
	}
	return nil
}
