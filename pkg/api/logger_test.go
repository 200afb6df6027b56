package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/corridor/pkg/api"
)

func captureRequestLog(t *testing.T, request *http.Request) map[string]interface{} {
	t.Helper()

	var buffer bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buffer)
	t.Cleanup(func() { log.Logger = previous })

	app := fiber.New()
	app.Use(api.NewLogger())
	app.Get("/signals", func(c *fiber.Ctx) error {
		c.Locals("account_userid", "dispatcher")
		c.Locals("account_role", "DISPATCH")
		return c.SendStatus(fiber.StatusForbidden)
	})
	app.Get("/broken", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusInternalServerError)
	})

	response, err := app.Test(request, -1)
	require.NoError(t, err)
	response.Body.Close()

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
	return line
}

func TestLoggerRecordsCaller(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/signals?accidentId=ACC-1", nil)
	request.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	line := captureRequestLog(t, request)
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, float64(http.StatusForbidden), line["status"])
	assert.Equal(t, "203.0.113.7", line["ip"])
	assert.Equal(t, "dispatcher", line["subject"])
	assert.Equal(t, "DISPATCH", line["role"])
	assert.Equal(t, "ACC-1", line["room"])
}

func TestLoggerPrefersEdgeAddress(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/broken", nil)
	request.Header.Set("CF-Connecting-IP", "198.51.100.4")
	request.Header.Set("X-Forwarded-For", "203.0.113.7")

	line := captureRequestLog(t, request)
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "198.51.100.4", line["ip"])
	assert.NotContains(t, line, "subject")
}
