package httpx

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window.
	// Zero or negative disables throttling.
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// DefaultOutboundLimit keeps a single process from hammering the SSO gateway.
// A full login flow is at most six hops, so the burst covers two flows back to
// back.
// Override with: RATELIMIT_SSO_REQUESTS, RATELIMIT_SSO_WINDOW_SEC, RATELIMIT_SSO_BURST
var DefaultOutboundLimit = RateLimitConfig{
	RequestsPerWindow: 120,
	Window:            time.Minute,
	Burst:             12,
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_SSO_REQUESTS, RATELIMIT_SSO_WINDOW_SEC, RATELIMIT_SSO_BURST
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests >= 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes.
type KeyExtractor func(*http.Request) string

// HostKeyExtractor groups outbound requests by target host.
func HostKeyExtractor(r *http.Request) string {
	return r.URL.Host
}

// rateLimiter manages rate limiters for different keys
type rateLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	mu       sync.Mutex
	// Cleanup old limiters periodically
	lastCleanup time.Time
}

// getLimiter retrieves or creates a rate limiter for the given key
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	actual, _ := rl.limiters.LoadOrStore(key, limiter)

	rl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets are full again, they have been
// idle long enough that recreating them loses nothing.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < 5*time.Minute {
		return
	}

	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

type throttledTransport struct {
	next         http.RoundTripper
	limiter      *rateLimiter
	keyExtractor KeyExtractor
}

// ThrottledTransport wraps next so that requests sharing a key wait for a
// token before being sent. Waiting honours the request context, so an
// abandoned flow stops queueing immediately.
func ThrottledTransport(next http.RoundTripper, config RateLimitConfig, keyExtractor KeyExtractor) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if config.RequestsPerWindow <= 0 || config.Window <= 0 {
		return next
	}

	burst := max(config.Burst, 1)
	ratePerSecond := float64(config.RequestsPerWindow) / config.Window.Seconds()

	return &throttledTransport{
		next: next,
		limiter: &rateLimiter{
			rate:        rate.Limit(ratePerSecond),
			burst:       burst,
			lastCleanup: time.Now(),
		},
		keyExtractor: keyExtractor,
	}
}

// ThrottleByHost creates a throttled transport keyed by target host.
func ThrottleByHost(next http.RoundTripper, config RateLimitConfig) http.RoundTripper {
	return ThrottledTransport(next, config, HostKeyExtractor)
}

func (t *throttledTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	key := t.keyExtractor(r)
	if key == "" {
		return t.next.RoundTrip(r)
	}

	if err := t.limiter.getLimiter(key).Wait(r.Context()); err != nil {
		return nil, fmt.Errorf("throttled request to %s: %w", key, err)
	}

	return t.next.RoundTrip(r)
}
