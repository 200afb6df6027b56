package broker

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrNotConnected = errors.New("broker is not connected")
	ErrClosed       = errors.New("broker is closed")
	ErrUnknownKind  = errors.New("unknown broker kind")
)

// Message is a single payload received on a topic
type Message struct {
	Topic   string
	Payload []byte
}

type Handler func(Message)

// Broker is a topic based publish/subscribe transport.
//
// Topics are slash separated and patterns use MQTT wildcards: + matches a single
// level and a trailing # matches any remaining levels. Delivery is at-most-once.
// Network transports call handlers from a single goroutine in arrival order.
type Broker interface {
	// Connect blocks until the transport is confirmed open or ctx is done
	Connect(ctx context.Context) error
	// Subscribe registers a handler. Subscriptions survive reconnects.
	Subscribe(pattern string, handler Handler) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// MatchTopic reports whether topic matches an MQTT style pattern
func MatchTopic(pattern string, topic string) bool {
	patternLevels := strings.Split(pattern, "/")
	topicLevels := strings.Split(topic, "/")

	for i, level := range patternLevels {
		if level == "#" {
			return i == len(patternLevels)-1
		}
		if i >= len(topicLevels) {
			return false
		}
		if level != "+" && level != topicLevels[i] {
			return false
		}
	}

	return len(patternLevels) == len(topicLevels)
}

type subscription struct {
	pattern string
	// native is the transport specific form of pattern
	native  string
	handler Handler
}

type subscriptions struct {
	mutex sync.RWMutex
	list  []subscription
}

func (s *subscriptions) add(sub subscription) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.list = append(s.list, sub)
}

func (s *subscriptions) all() []subscription {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	list := make([]subscription, len(s.list))
	copy(list, s.list)
	return list
}

// dispatch calls every handler whose pattern matches. A non empty native
// restricts delivery to the subscription that the transport matched, so
// overlapping patterns do not receive the same message twice.
func (s *subscriptions) dispatch(native string, message Message) {
	for _, sub := range s.all() {
		if native != "" && sub.native != native {
			continue
		}
		if MatchTopic(sub.pattern, message.Topic) {
			sub.handler(message)
		}
	}
}
