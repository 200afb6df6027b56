package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvironmentVariables(t *testing.T) {
	t.Setenv("CORRIDOR_REDIS_URL", "redis://cache:6379/0?dial_timeout=1s")
	t.Setenv("CORRIDOR_EMPTY", "")

	env := GetEnvironmentVariables()
	assert.Equal(t, "redis://cache:6379/0?dial_timeout=1s", env["CORRIDOR_REDIS_URL"])

	value, ok := env["CORRIDOR_EMPTY"]
	assert.True(t, ok)
	assert.Empty(t, value)
}
