package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const mqttQoS = 0

type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	ReconnectInterval time.Duration
}

// MQTTBroker uses paho with automatic reconnection. Subscriptions are (re)issued
// from the on-connect handler so they are only ever made on an open connection.
type MQTTBroker struct {
	config MQTTConfig
	client mqtt.Client

	subs subscriptions

	mutex  sync.Mutex
	closed bool
}

func NewMQTTBroker(config MQTTConfig) *MQTTBroker {
	if config.ClientID == "" {
		config.ClientID = fmt.Sprintf("corridor-%s", uuid.NewString())
	}

	b := &MQTTBroker{config: config}

	options := mqtt.NewClientOptions().
		AddBroker(config.BrokerURL).
		SetClientID(config.ClientID).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(config.ReconnectInterval).
		SetMaxReconnectInterval(config.ReconnectInterval).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Str("broker", config.BrokerURL).Msg("MQTT connection lost")
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			log.Info().Str("broker", config.BrokerURL).Msg("MQTT reconnecting")
		})

	if config.Username != "" {
		options.SetUsername(config.Username)
		options.SetPassword(config.Password)
	}

	b.client = mqtt.NewClient(options)

	return b
}

func (b *MQTTBroker) Connect(ctx context.Context) error {
	token := b.client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	return token.Error()
}

func (b *MQTTBroker) onConnect(client mqtt.Client) {
	log.Info().Str("broker", b.config.BrokerURL).Msg("MQTT broker connected")

	for _, sub := range b.subs.all() {
		b.subscribe(client, sub)
	}
}

func (b *MQTTBroker) subscribe(client mqtt.Client, sub subscription) {
	token := client.Subscribe(sub.native, mqttQoS, func(_ mqtt.Client, message mqtt.Message) {
		sub.handler(Message{Topic: message.Topic(), Payload: message.Payload()})
	})

	go func() {
		if token.WaitTimeout(b.config.ReconnectInterval) && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", sub.native).Msg("MQTT subscribe failed")
		}
	}()
}

func (b *MQTTBroker) Subscribe(pattern string, handler Handler) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrClosed
	}

	sub := subscription{pattern: pattern, native: pattern, handler: handler}
	b.subs.add(sub)

	// Otherwise onConnect picks it up
	if b.client.IsConnectionOpen() {
		b.subscribe(b.client, sub)
	}

	return nil
}

func (b *MQTTBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	if !b.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := b.client.Publish(topic, mqttQoS, false, payload)

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MQTTBroker) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if !b.closed {
		b.closed = true
		b.client.Disconnect(250)
	}
	return nil
}
