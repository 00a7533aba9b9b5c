package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterDisabled(t *testing.T) {
	l := newRateLimiter(0)
	assert.Nil(t, l)
	for range 1000 {
		require.True(t, allowEvent(l))
	}
}

func TestRateLimiterBurstThenRefill(t *testing.T) {
	l := newRateLimiter(3)
	require.NotNil(t, l)

	start := time.Now()
	for i := range 3 {
		require.True(t, l.AllowN(start, 1), "event %d within burst", i)
	}
	assert.False(t, l.AllowN(start, 1), "burst exhausted")

	// Tokens come back one every 20s at 3 per minute.
	assert.False(t, l.AllowN(start.Add(10*time.Second), 1))
	assert.True(t, l.AllowN(start.Add(41*time.Second), 1))
}
