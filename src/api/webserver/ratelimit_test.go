package webserver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)

	assert.True(t, rl.Allow("ver_001"))
	assert.True(t, rl.Allow("ver_001"))
	assert.False(t, rl.Allow("ver_001"))

	// independent budget per caller
	assert.True(t, rl.Allow("ver_002"))
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)

	assert.True(t, rl.Allow("ver_001"))
	assert.False(t, rl.Allow("ver_001"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("ver_001"))
}
