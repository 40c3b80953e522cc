package worker

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter implements per-endpoint rate limiting. Keys are endpoint URLs or
// bare provider names; URLs are bucketed by host.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter. A non-positive rate disables limiting.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Wait waits for rate limit clearance for the given endpoint
func (l *Limiter) Wait(ctx context.Context, endpoint string) error {
	bucket, err := bucketKey(endpoint)
	if err != nil {
		return err
	}

	limiter := l.getLimiter(bucket)
	return limiter.Wait(ctx)
}

// getLimiter returns the rate limiter for a bucket
func (l *Limiter) getLimiter(bucket string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[bucket]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[bucket]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[bucket] = limiter

	return limiter
}

// bucketKey maps an endpoint to its limiter bucket: the host for URLs,
// the key itself for provider names
func bucketKey(endpoint string) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if parsed.Host == "" {
		return endpoint, nil
	}
	return parsed.Host, nil
}
