package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	// Configuration
	limit           rate.Limit
	burst           int
	cleanupInterval time.Duration
	idleTimeout     time.Duration

	totalHits int64
}

type clientInfo struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration
type Config struct {
	// RequestsPerSecond is the sustained rate per client.
	RequestsPerSecond float64
	// Burst is how many requests a client may make at once.
	Burst           int
	CleanupInterval time.Duration
	// IdleTimeout drops a client's bucket after this long without requests.
	IdleTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
		IdleTimeout:       10 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter and starts its cleanup goroutine.
// Call Stop to release it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}

	rl := &Limiter{
		clients:         make(map[string]*clientInfo),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		limit:           rate.Limit(config.RequestsPerSecond),
		burst:           config.Burst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
	}
	go rl.startCleanup()
	return rl
}

// Allow checks if a request from the given key should be allowed
func (rl *Limiter) Allow(key string) bool {
	return rl.reserve(key) == 0
}

// reserve consumes a token when one is available and otherwise reports how
// long the client should wait. It never holds a reservation it does not use.
func (rl *Limiter) reserve(key string) time.Duration {
	now := rl.now()

	rl.mu.Lock()
	client, exists := rl.clients[key]
	if !exists {
		client = &clientInfo{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = now
	rl.mu.Unlock()

	r := client.limiter.ReserveN(now, 1)
	if !r.OK() {
		return time.Duration(math.MaxInt64)
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		atomic.AddInt64(&rl.totalHits, 1)
		return delay
	}
	return 0
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes clients idle longer than the idle timeout
func (rl *Limiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTimeout)
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns current rate limiting metrics
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   atomic.LoadInt64(&rl.totalHits),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func (rl *Limiter) Middleware(extractKey func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extractKey(r)

			if delay := rl.reserve(key); delay > 0 {
				retry := int(math.Ceil(delay.Seconds()))
				if retry < 1 || delay == time.Duration(math.MaxInt64) {
					retry = 1
				}
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client", key,
					"path", r.URL.Path,
					"retry_after_s", retry)

				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded, try again later"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
