package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetConfigFrameBounds(t *testing.T) {
	t.Setenv("CORRIDOR_WRITE_TIMEOUT", "3s")
	t.Setenv("CORRIDOR_MAX_FRAME_SIZE", "1024")

	config := GetConfig()
	assert.Equal(t, 3*time.Second, config.WriteTimeout)
	assert.Equal(t, int64(1024), config.MaxFrameSize)

	t.Setenv("CORRIDOR_WRITE_TIMEOUT", "soon")
	t.Setenv("CORRIDOR_MAX_FRAME_SIZE", "-1")

	config = GetConfig()
	assert.Equal(t, DefaultConfig.WriteTimeout, config.WriteTimeout)
	assert.Equal(t, DefaultConfig.MaxFrameSize, config.MaxFrameSize)
}
