package relay

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/corridor/pkg/util"
)

type Config struct {
	LocationCacheSize int
	SendQueueSize     int
	ForwardQueueSize  int
	ForwardTimeout    time.Duration
	LocationMirrorTTL time.Duration

	// WriteTimeout bounds each outbound frame. MaxFrameSize caps inbound frames in bytes.
	WriteTimeout time.Duration
	MaxFrameSize int64
}

var DefaultConfig = Config{
	LocationCacheSize: 1000,
	SendQueueSize:     64,
	ForwardQueueSize:  256,
	ForwardTimeout:    2 * time.Second,
	LocationMirrorTTL: 30 * time.Minute,
	WriteTimeout:      10 * time.Second,
	MaxFrameSize:      64 * 1024,
}

func GetConfig() Config {
	config := DefaultConfig

	env := util.GetEnvironmentVariables()

	if val := env["CORRIDOR_LOCATION_CACHE_SIZE"]; val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			config.LocationCacheSize = parsed
		} else {
			log.Warn().Str("value", val).Msg("Ignoring invalid CORRIDOR_LOCATION_CACHE_SIZE")
		}
	}

	if val := env["CORRIDOR_SEND_QUEUE_SIZE"]; val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			config.SendQueueSize = parsed
		} else {
			log.Warn().Str("value", val).Msg("Ignoring invalid CORRIDOR_SEND_QUEUE_SIZE")
		}
	}

	if val := env["CORRIDOR_FORWARD_TIMEOUT"]; val != "" {
		if parsed, err := time.ParseDuration(val); err == nil && parsed > 0 {
			config.ForwardTimeout = parsed
		} else {
			log.Warn().Str("value", val).Msg("Ignoring invalid CORRIDOR_FORWARD_TIMEOUT")
		}
	}

	if val := env["CORRIDOR_WRITE_TIMEOUT"]; val != "" {
		if parsed, err := time.ParseDuration(val); err == nil && parsed > 0 {
			config.WriteTimeout = parsed
		} else {
			log.Warn().Str("value", val).Msg("Ignoring invalid CORRIDOR_WRITE_TIMEOUT")
		}
	}

	if val := env["CORRIDOR_MAX_FRAME_SIZE"]; val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil && parsed > 0 {
			config.MaxFrameSize = parsed
		} else {
			log.Warn().Str("value", val).Msg("Ignoring invalid CORRIDOR_MAX_FRAME_SIZE")
		}
	}

	return config
}
