package broker

import (
	"context"
	"strings"
)

type namespaced struct {
	Broker
	prefix string
}

// WithNamespace prefixes every topic so several deployments can share one broker
func WithNamespace(broker Broker, namespace string) Broker {
	namespace = strings.Trim(namespace, "/")
	if namespace == "" {
		return broker
	}

	return &namespaced{Broker: broker, prefix: namespace + "/"}
}

func (n *namespaced) Subscribe(pattern string, handler Handler) error {
	return n.Broker.Subscribe(n.prefix+pattern, func(message Message) {
		message.Topic = strings.TrimPrefix(message.Topic, n.prefix)
		handler(message)
	})
}

func (n *namespaced) Publish(ctx context.Context, topic string, payload []byte) error {
	return n.Broker.Publish(ctx, n.prefix+topic, payload)
}
