// Package middleware provides HTTP middleware components for the risk-scoring API.
package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier int = 2
	defaultMaxClients       int = 10000

	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterIdleTimeout     = 1 * time.Hour
)

type (
	// RateLimiter provides rate limiting for incoming requests.
	//
	// Implementations may use in-memory token buckets (single-node deployment)
	// or distributed stores for multi-node deployments. The interface enables
	// migrating from in-memory to a distributed limiter without touching the
	// HTTP handler chain.
	RateLimiter interface {
		// Allow checks if a request from clientKey should be allowed.
		// clientKey is typically the caller's remote IP; empty string means
		// "no distinguishable caller", which falls back to the global limit.
		Allow(clientKey string) bool
	}

	// InMemoryRateLimiter implements RateLimiter using golang.org/x/time/rate.
	//
	// Provides two-tier rate limiting:
	//  1. Global limit (applied to all requests)
	//  2. Per-client limit, keyed by remote IP
	//
	// Memory cleanup runs periodically to prevent unbounded growth from
	// clients that stop sending traffic.
	InMemoryRateLimiter struct {
		global        *rate.Limiter
		perClient     map[string]*clientLimiter
		mu            sync.RWMutex
		cleanupTicker *time.Ticker
		done          chan struct{}

		clientRPS       int
		clientBurst     int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxClients      int
	}

	clientLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}

	// RateLimitConfig configures an InMemoryRateLimiter.
	RateLimitConfig struct {
		GlobalRPS       int
		GlobalBurst     int
		ClientRPS       int
		ClientBurst     int
		CleanupInterval time.Duration
		IdleTimeout     time.Duration
		MaxClients      int
	}
)

// NewInMemoryRateLimiter creates a new in-memory rate limiter with two-tier limits.
//
// Burst capacity is computed automatically as 2 × rate unless overridden in config.
func NewInMemoryRateLimiter(config RateLimitConfig) *InMemoryRateLimiter {
	globalBurst := computeBurstCapacity(config.GlobalRPS, config.GlobalBurst)
	clientBurst := computeBurstCapacity(config.ClientRPS, config.ClientBurst)

	maxClients := config.MaxClients
	if maxClients == 0 {
		maxClients = defaultMaxClients
	}

	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(config.GlobalRPS), globalBurst),
		perClient:       make(map[string]*clientLimiter),
		done:            make(chan struct{}),
		clientRPS:       config.ClientRPS,
		clientBurst:     clientBurst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		maxClients:      maxClients,
	}

	rl.startCleanup()

	return rl
}

func computeBurstCapacity(rps, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rps * burstCapacityMultiplier
}

// Allow checks if a request should be allowed based on rate limits.
func (rl *InMemoryRateLimiter) Allow(clientKey string) bool {
	if !rl.global.Allow() {
		return false
	}

	if clientKey == "" || rl.clientRPS == 0 {
		return true
	}

	rl.mu.RLock()
	cl, ok := rl.perClient[clientKey]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		if cl, ok = rl.perClient[clientKey]; !ok {
			if len(rl.perClient) >= rl.maxClients {
				// Drop the oldest tracking rather than grow unbounded; the
				// global limiter still protects against abuse.
				rl.evictOldestLocked()
			}

			cl = &clientLimiter{
				limiter:    rate.NewLimiter(rate.Limit(rl.clientRPS), rl.clientBurst),
				lastAccess: time.Now(),
			}
			rl.perClient[clientKey] = cl
		}
		rl.mu.Unlock()
	}

	cl.mu.Lock()
	cl.lastAccess = time.Now()
	cl.mu.Unlock()

	return cl.limiter.Allow()
}

// evictOldestLocked drops the least-recently-seen client limiter. Caller must hold rl.mu.
func (rl *InMemoryRateLimiter) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time

	for key, cl := range rl.perClient {
		cl.mu.Lock()
		lastAccess := cl.lastAccess
		cl.mu.Unlock()

		if oldestKey == "" || lastAccess.Before(oldestAt) {
			oldestKey, oldestAt = key, lastAccess
		}
	}

	if oldestKey != "" {
		delete(rl.perClient, oldestKey)
	}
}

// Close stops the cleanup goroutine and releases resources.
func (rl *InMemoryRateLimiter) Close() {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)
}

func (rl *InMemoryRateLimiter) startCleanup() {
	cleanupInterval := rl.cleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(cleanupInterval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

func (rl *InMemoryRateLimiter) cleanup() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, cl := range rl.perClient {
		cl.mu.Lock()
		lastAccess := cl.lastAccess
		cl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perClient, key)
		}
	}
}

// RateLimit returns a middleware that enforces rate limits on incoming requests.
// Clients are identified by the X-Forwarded-For header when it is present,
// otherwise by remote IP. When a request exceeds the rate limit,
// the middleware returns a 429 (Too Many Requests) response in RFC 7807 format.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := clientIP(r)

			if !limiter.Allow(clientKey) {
				correlationID := GetCorrelationID(r.Context())
				detail := "Rate limit exceeded. Please retry after some time."

				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write rate limit error response",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

type rfc7807Problem struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	CorrelationID string `json:"correlation_id"` //nolint: tagliatelle
}

// writeRFC7807Error writes an RFC 7807 compliant error response. Defined locally
// (rather than reusing api.ProblemDetail) to avoid an import cycle between
// internal/api and internal/api/middleware.
func writeRFC7807Error(w http.ResponseWriter, r *http.Request, status int, detail, correlationID string) error {
	problem := rfc7807Problem{
		Type:          fmt.Sprintf("https://risk-pipeline.io/problems/%d", status),
		Title:         http.StatusText(status),
		Status:        status,
		Detail:        detail,
		Instance:      r.URL.Path,
		CorrelationID: correlationID,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(problem)
}
