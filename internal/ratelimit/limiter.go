// Package ratelimit spaces out browser sessions that hit the same shop.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	urlutil "github.com/law-makers/revscrape/internal/utils/url"
)

// RateLimiter gates session starts per target
type RateLimiter interface {
	// Wait blocks until a session for urlStr may start or ctx is done
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a session for urlStr may start right now
	Allow(urlStr string) bool
}

// DomainLimiter keeps one token bucket per host
type DomainLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit
	burst    int
}

var _ RateLimiter = (*DomainLimiter)(nil)

// NewDomainLimiter creates a limiter allowing requestsPerSecond sessions per
// host. Non-positive values fall back to one session every two seconds.
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 0.5
	}
	if burst <= 0 {
		burst = 1
	}

	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until a session for urlStr can start
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	domain := urlutil.Domain(urlStr)
	if domain == "" {
		// invalid URLs fail in the session itself
		return nil
	}
	return dl.getLimiter(domain).Wait(ctx)
}

// Allow checks if a session can start immediately without blocking
func (dl *DomainLimiter) Allow(urlStr string) bool {
	domain := urlutil.Domain(urlStr)
	if domain == "" {
		return true
	}
	return dl.getLimiter(domain).Allow()
}

// getLimiter returns or creates the limiter of domain
func (dl *DomainLimiter) getLimiter(domain string) *rate.Limiter {
	dl.mu.RLock()
	limiter, exists := dl.limiters[domain]
	dl.mu.RUnlock()

	if exists {
		return limiter
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if limiter, exists := dl.limiters[domain]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(dl.perHost, dl.burst)
	dl.limiters[domain] = limiter
	return limiter
}

// SetLimit overrides the rate of one host
func (dl *DomainLimiter) SetLimit(domain string, requestsPerSecond float64, burst int) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if limiter, exists := dl.limiters[domain]; exists {
		limiter.SetLimit(rate.Limit(requestsPerSecond))
		limiter.SetBurst(burst)
		return
	}
	dl.limiters[domain] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
