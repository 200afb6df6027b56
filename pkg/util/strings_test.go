package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimString(t *testing.T) {
	assert.Equal(t, "short", TrimString("short", 10))
	assert.Equal(t, "abc", TrimString("abcdef", 3))
	assert.Equal(t, "caf", TrimString("café", 4))
	assert.Equal(t, "", TrimString("éé", 1))
}
