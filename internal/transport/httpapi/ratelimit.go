package httpapi

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	errx "github.com/chat-food/server/internal/core/error"
)

const (
	maxLimitedSessions = 10000
	limiterTTL         = 10 * time.Minute
)

// rateLimiter keeps one token bucket per session; idle buckets expire.
// A non-positive rate disables limiting.
type rateLimiter struct {
	limiters *expirable.LRU[string, *rate.Limiter]
	rate     rate.Limit
	burst    int
}

func newRateLimiter(requestsPerMin int) *rateLimiter {
	if requestsPerMin <= 0 {
		return &rateLimiter{}
	}
	return &rateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](maxLimitedSessions, nil, limiterTTL),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    max(1, requestsPerMin/10),
	}
}

func (rl *rateLimiter) Allow(key string) error {
	if rl.limiters == nil {
		return nil
	}
	limiter, ok := rl.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters.Add(key, limiter)
	}
	if !limiter.Allow() {
		return errx.ErrRateLimited
	}
	return nil
}
