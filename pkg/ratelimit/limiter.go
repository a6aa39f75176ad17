// Package ratelimit throttles the unauthenticated login route. Limits are
// keyed by client IP; a Redis-backed limiter shares counts across
// instances, with an in-process token bucket for single-node deployments.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config defines rate limiting behavior for one key space.
type Config struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// Limit is the effective request capacity of one window: the sustained
// rate plus the burst headroom. Limiters admit up to this many requests
// and the middleware advertises it in X-RateLimit-Limit.
func (c *Config) Limit() int {
	return c.RequestsPerWindow + c.BurstSize
}

// LoginConfig returns the default limits for credential exchange. Login is
// deliberately tight: it fronts the identity provider and the user store.
func LoginConfig() *Config {
	return &Config{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// Limiter decides whether a request under a key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Remaining(ctx context.Context, key string) (int, error)
}

// LocalLimiter is an in-process token bucket limiter.
type LocalLimiter struct {
	config  *Config
	buckets map[string]*bucket
	mu      sync.Mutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
}

// NewLocalLimiter creates an in-process limiter.
func NewLocalLimiter(config *Config) *LocalLimiter {
	if config == nil {
		config = LoginConfig()
	}
	return &LocalLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes a token for key, refilling first based on elapsed time.
func (l *LocalLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	maxTokens := l.config.Limit()
	now := l.now()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: maxTokens, lastUpdate: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastUpdate)
	refill := int(elapsed.Seconds() * float64(l.config.RequestsPerWindow) / l.config.WindowDuration.Seconds())
	if refill > 0 {
		b.tokens += refill
		if b.tokens > maxTokens {
			b.tokens = maxTokens
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Remaining returns the tokens left for key.
func (l *LocalLimiter) Remaining(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return l.config.Limit(), nil
	}
	return b.tokens, nil
}

// Cleanup drops buckets idle for more than two windows.
func (l *LocalLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastUpdate) > l.config.WindowDuration*2 {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup every window until the context is cancelled.
func (l *LocalLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}
