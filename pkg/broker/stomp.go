package broker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog/log"
)

const stompTopicPrefix = "/topic/"

type StompConfig struct {
	Address  string
	Username string
	Password string

	ReconnectInterval time.Duration
}

// StompBroker maps topics onto ActiveMQ style destinations, e.g. sos/+ becomes
// /topic/sos.* and case/# becomes /topic/case.>
type StompBroker struct {
	config StompConfig

	subs subscriptions

	mutex  sync.Mutex
	conn   *stomp.Conn
	closed bool
	done   chan struct{}
}

func NewStompBroker(config StompConfig) *StompBroker {
	return &StompBroker{
		config: config,
		done:   make(chan struct{}),
	}
}

func (b *StompBroker) dial(ctx context.Context) (*stomp.Conn, error) {
	stompOptions := []func(*stomp.Conn) error{
		stomp.ConnOpt.Login(b.config.Username, b.config.Password),
		stomp.ConnOpt.HeartBeat(b.config.ReconnectInterval, b.config.ReconnectInterval),
	}

	var conn *stomp.Conn
	retry := backoff.WithContext(backoff.NewConstantBackOff(b.config.ReconnectInterval), ctx)

	err := backoff.RetryNotify(func() error {
		dialled, err := stomp.Dial("tcp", b.config.Address, stompOptions...)
		if err != nil {
			return err
		}
		conn = dialled
		return nil
	}, retry, func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("address", b.config.Address).Str("retry", wait.String()).Msg("STOMP broker not reachable")
	})

	return conn, err
}

func (b *StompBroker) Connect(ctx context.Context) error {
	conn, err := b.dial(ctx)
	if err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		conn.Disconnect()
		return ErrClosed
	}
	b.conn = conn

	log.Info().Str("address", b.config.Address).Msg("STOMP broker connected")

	for _, sub := range b.subs.all() {
		b.subscribeLocked(sub)
	}

	return nil
}

func (b *StompBroker) Subscribe(pattern string, handler Handler) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.conn == nil {
		return ErrNotConnected
	}

	sub := subscription{pattern: pattern, native: stompDestination(pattern), handler: handler}
	b.subs.add(sub)

	return b.subscribeLocked(sub)
}

func (b *StompBroker) subscribeLocked(sub subscription) error {
	conn := b.conn

	stompSub, err := conn.Subscribe(sub.native, stomp.AckAuto)
	if err != nil {
		log.Error().Err(err).Str("destination", sub.native).Msg("STOMP subscribe failed")
		go b.reconnect(conn)
		return err
	}

	go func() {
		for message := range stompSub.C {
			if message.Err != nil {
				log.Warn().Err(message.Err).Str("destination", sub.native).Msg("STOMP subscription lost")
				b.reconnect(conn)
				return
			}

			topic := topicFromDestination(message.Destination)
			if MatchTopic(sub.pattern, topic) {
				sub.handler(Message{Topic: topic, Payload: message.Body})
			}
		}
	}()

	return nil
}

// reconnect replaces failed with a fresh connection unless another subscription
// already did so
func (b *StompBroker) reconnect(failed *stomp.Conn) {
	b.mutex.Lock()
	if b.closed || b.conn != failed {
		b.mutex.Unlock()
		return
	}
	b.conn = nil
	b.mutex.Unlock()

	failed.MustDisconnect()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := b.Connect(ctx); err != nil {
		log.Error().Err(err).Str("address", b.config.Address).Msg("STOMP reconnect abandoned")
	}
}

func (b *StompBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mutex.Lock()
	conn, closed := b.conn, b.closed
	b.mutex.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	return conn.Send(stompDestination(topic), "application/json", payload)
}

func (b *StompBroker) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)

	if b.conn != nil {
		err := b.conn.Disconnect()
		b.conn = nil
		return err
	}
	return nil
}

func stompDestination(pattern string) string {
	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		switch level {
		case "+":
			levels[i] = "*"
		case "#":
			levels[i] = ">"
		}
	}
	return stompTopicPrefix + strings.Join(levels, ".")
}

func topicFromDestination(destination string) string {
	return strings.ReplaceAll(strings.TrimPrefix(destination, stompTopicPrefix), ".", "/")
}
