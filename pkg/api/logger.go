package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger writes one line per request. Client errors log at warn and server errors at error.
func NewLogger() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		startTime := time.Now()
		err = c.Next()

		msg := "HTTP Request"
		if err != nil {
			msg = err.Error()
		}

		code := c.Response().StatusCode()

		requestLogger := log.With().
			Int("status", code).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", clientIP(c)).
			Dur("latency", time.Since(startTime)).
			Str("user-agent", c.Get(fiber.HeaderUserAgent)).
			Logger()

		var event *zerolog.Event
		switch {
		case code >= fiber.StatusInternalServerError:
			event = requestLogger.Error()
		case code >= fiber.StatusBadRequest:
			event = requestLogger.Warn()
		default:
			event = requestLogger.Info()
		}

		// Set by EnsureValidToken on authenticated routes
		if subject, ok := c.Locals("account_userid").(string); ok && subject != "" {
			event = event.Str("subject", subject)
		}
		if role, ok := c.Locals("account_role").(string); ok && role != "" {
			event = event.Str("role", role)
		}
		if room := c.Query("accidentId"); room != "" {
			event = event.Str("room", room)
		}

		event.Msg(msg)

		return nil
	}
}

// clientIP prefers the edge proxy's view of the caller over the socket address
func clientIP(c *fiber.Ctx) string {
	if connectingIP := c.Get("CF-Connecting-IP"); connectingIP != "" {
		return connectingIP
	}

	if forwardedFor := c.Get(fiber.HeaderXForwardedFor); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}

	return c.IP()
}
