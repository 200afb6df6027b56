package broker

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/redis_client"
	"github.com/travigo/corridor/pkg/util"
)

const (
	KindMemory = "memory"
	KindRedis  = "redis"
	KindMQTT   = "mqtt"
	KindStomp  = "stomp"
)

const defaultNamespace = "corridor"
const defaultReconnectInterval = 5 * time.Second
const defaultMQTTBroker = "tcp://localhost:1883"
const defaultStompAddress = "localhost:61613"

type Config struct {
	Kind              string
	Namespace         string
	ReconnectInterval time.Duration

	MQTT  MQTTConfig
	Stomp StompConfig
}

// GetConfig reads broker settings from the environment for the given transport kind
func GetConfig(kind string) Config {
	env := util.GetEnvironmentVariables()

	config := Config{
		Kind:              kind,
		Namespace:         defaultNamespace,
		ReconnectInterval: defaultReconnectInterval,
	}

	if val, ok := env["CORRIDOR_BROKER_NAMESPACE"]; ok {
		config.Namespace = val
	}

	if val := env["CORRIDOR_BROKER_RECONNECT_INTERVAL"]; val != "" {
		if parsed, err := time.ParseDuration(val); err == nil && parsed > 0 {
			config.ReconnectInterval = parsed
		} else {
			log.Warn().Str("value", val).Msg("Ignoring invalid CORRIDOR_BROKER_RECONNECT_INTERVAL")
		}
	}

	config.MQTT = MQTTConfig{
		BrokerURL:         defaultMQTTBroker,
		ClientID:          env["CORRIDOR_MQTT_CLIENT_ID"],
		Username:          env["CORRIDOR_MQTT_USERNAME"],
		Password:          env["CORRIDOR_MQTT_PASSWORD"],
		ReconnectInterval: config.ReconnectInterval,
	}
	if env["CORRIDOR_MQTT_BROKER"] != "" {
		config.MQTT.BrokerURL = env["CORRIDOR_MQTT_BROKER"]
	}

	config.Stomp = StompConfig{
		Address:           defaultStompAddress,
		Username:          env["CORRIDOR_STOMP_USERNAME"],
		Password:          env["CORRIDOR_STOMP_PASSWORD"],
		ReconnectInterval: config.ReconnectInterval,
	}
	if env["CORRIDOR_STOMP_ADDRESS"] != "" {
		config.Stomp.Address = env["CORRIDOR_STOMP_ADDRESS"]
	}

	return config
}

// New builds the transport named by config.Kind. The redis kind needs
// redis_client.Connect to have been called first.
func New(config Config) (Broker, error) {
	var transport Broker

	switch config.Kind {
	case KindMemory, "":
		transport = NewMemoryBroker()
	case KindRedis:
		if redis_client.Client == nil {
			return nil, fmt.Errorf("redis broker: %w", ErrNotConnected)
		}
		transport = NewRedisBroker(redis_client.Client, config.ReconnectInterval)
	case KindMQTT:
		transport = NewMQTTBroker(config.MQTT)
	case KindStomp:
		transport = NewStompBroker(config.Stomp)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, config.Kind)
	}

	return WithNamespace(transport, config.Namespace), nil
}
