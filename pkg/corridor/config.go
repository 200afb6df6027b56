package corridor

import (
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	iso8601 "github.com/senseyeio/duration"
	"github.com/travigo/corridor/pkg/util"
)

type Config struct {
	// Signals within ActivationRadius metres of a responder join its corridor
	ActivationRadius float64
	// Signals only leave the corridor once the responder is beyond RestoreRadius metres
	RestoreRadius float64
	// Distance at which a responder is considered to have reached the scene or hospital
	ArrivalRadius float64

	GreenDuration time.Duration
}

var DefaultConfig = Config{
	ActivationRadius: 500,
	RestoreRadius:    600,
	ArrivalRadius:    100,
	GreenDuration:    60 * time.Second,
}

// GetConfig returns the corridor configuration from environment variables or defaults
func GetConfig() Config {
	config := DefaultConfig

	env := util.GetEnvironmentVariables()

	if val := env["CORRIDOR_ACTIVATION_RADIUS_METRES"]; val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed > 0 {
			config.ActivationRadius = parsed
		}
	}

	if val := env["CORRIDOR_RESTORE_RADIUS_METRES"]; val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed > 0 {
			config.RestoreRadius = parsed
		}
	}

	if val := env["CORRIDOR_ARRIVAL_RADIUS_METRES"]; val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed > 0 {
			config.ArrivalRadius = parsed
		}
	}

	if val := env["CORRIDOR_GREEN_DURATION"]; val != "" {
		if parsed, err := ParseGreenDuration(val); err == nil {
			config.GreenDuration = parsed
		} else {
			log.Warn().Err(err).Str("value", val).Msg("Ignoring invalid CORRIDOR_GREEN_DURATION")
		}
	}

	if config.RestoreRadius <= config.ActivationRadius {
		log.Warn().
			Float64("activation", config.ActivationRadius).
			Float64("restore", config.RestoreRadius).
			Msg("Restore radius must exceed activation radius, using defaults")

		config.ActivationRadius = DefaultConfig.ActivationRadius
		config.RestoreRadius = DefaultConfig.RestoreRadius
	}

	return config
}

// ParseGreenDuration parses an ISO8601 duration such as PT60S
func ParseGreenDuration(value string) (time.Duration, error) {
	isoDuration, err := iso8601.ParseISO8601(value)
	if err != nil {
		return 0, err
	}

	reference := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	greenDuration := isoDuration.Shift(reference).Sub(reference)
	if greenDuration <= 0 {
		return 0, errInvalidDuration
	}

	return greenDuration, nil
}
