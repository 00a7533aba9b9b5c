package http

import (
	"time"

	"golang.org/x/time/rate"
)

// newRateLimiter caps inbound events per connection at perMinute with a
// burst of the same size. It returns nil when limiting is disabled.
func newRateLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func allowEvent(l *rate.Limiter) bool {
	return l == nil || l.Allow()
}
