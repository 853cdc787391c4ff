package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MaxRequests     int           `ini:"max_requests"` // Maximum number of requests allowed
	WindowSize      time.Duration `ini:"window"`       // Time window for rate limiting
	CleanupInterval time.Duration `ini:"cleanup_interval"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxRequests:     10,
		WindowSize:      time.Second,
		CleanupInterval: 5 * time.Minute,
	}
}

// RateLimiter implements sliding window rate limiting per key
type RateLimiter struct {
	config      *RateLimiterConfig
	requests    map[string][]time.Time
	mu          sync.Mutex
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultConfig()
	}

	rl := &RateLimiter{
		config:      config,
		requests:    make(map[string][]time.Time),
		stopCleanup: make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go rl.cleanupExpiredEntries()
	}
	return rl
}

// Allow records a request for key and reports whether it fits in the window
func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	cutoff := now.Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := pruneBefore(rl.requests[key], cutoff)
	if len(valid) >= rl.config.MaxRequests {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// cleanupExpiredEntries periodically removes expired entries to prevent memory leaks
func (rl *RateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, requests := range rl.requests {
		valid := pruneBefore(requests, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// timestamps are appended in order, so everything after the first fresh one is fresh too
func pruneBefore(requests []time.Time, cutoff time.Time) []time.Time {
	for i, ts := range requests {
		if ts.After(cutoff) {
			return requests[i:]
		}
	}
	return requests[:0]
}

// Limiter applies per-IP, per-signer and global limits to the RPC surface
type Limiter struct {
	ipLimiter     *RateLimiter
	signerLimiter *RateLimiter
	globalLimiter *RateLimiter
}

// LimiterConfig holds configuration for every limit the RPC server applies
type LimiterConfig struct {
	IPConfig     *RateLimiterConfig
	SignerConfig *RateLimiterConfig
	GlobalConfig *RateLimiterConfig
}

func DefaultLimiterConfig() *LimiterConfig {
	return &LimiterConfig{
		IPConfig: &RateLimiterConfig{
			MaxRequests:     50,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		SignerConfig: &RateLimiterConfig{
			MaxRequests:     30,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		GlobalConfig: &RateLimiterConfig{
			MaxRequests:     1000,
			WindowSize:      time.Second,
			CleanupInterval: 5 * time.Minute,
		},
	}
}

func NewLimiter(config *LimiterConfig) *Limiter {
	if config == nil {
		config = DefaultLimiterConfig()
	}
	return &Limiter{
		ipLimiter:     NewRateLimiter(config.IPConfig),
		signerLimiter: NewRateLimiter(config.SignerConfig),
		globalLimiter: NewRateLimiter(config.GlobalConfig),
	}
}

// AllowIP checks the per-IP and global limits; called before the request body is decoded
func (l *Limiter) AllowIP(ip string) error {
	if !l.globalLimiter.Allow("global") {
		return NewRateLimitError("global", "global", "server is busy")
	}
	if !l.ipLimiter.Allow(ip) {
		return NewRateLimitError("ip", ip, "too many requests")
	}
	return nil
}

// AllowSigner checks the per-signer limit once a request signature has been verified
func (l *Limiter) AllowSigner(signer string) error {
	if !l.signerLimiter.Allow(signer) {
		return NewRateLimitError("signer", signer, "too many requests")
	}
	return nil
}

func (l *Limiter) Stop() {
	l.ipLimiter.Stop()
	l.signerLimiter.Stop()
	l.globalLimiter.Stop()
}

// RateLimitError represents a rate limit error
type RateLimitError struct {
	Type    string
	Key     string
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s '%s': %s", e.Type, e.Key, e.Message)
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(rateType, key, message string) *RateLimitError {
	return &RateLimitError{
		Type:    rateType,
		Key:     key,
		Message: message,
	}
}
