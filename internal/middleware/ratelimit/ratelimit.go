package ratelimit

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"fintrack/internal/cache"
)

// Limiter hands out a token bucket per client key.
type Limiter struct {
	clients *cache.LRUCache[*rate.Limiter]
	perMin  int
	limit   rate.Limit
	burst   int

	hits     atomic.Int64
	rejected atomic.Int64
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Burst             int
	MaxClients        int
	IdleTTL           time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		Burst:             20,
		MaxClients:        10000,
		IdleTTL:           10 * time.Minute,
	}
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = min(config.RequestsPerMinute, def.Burst)
	}
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}

	return &Limiter{
		clients: cache.NewLRUCache[*rate.Limiter](config.MaxClients, config.IdleTTL),
		perMin:  config.RequestsPerMinute,
		limit:   rate.Limit(float64(config.RequestsPerMinute) / 60),
		burst:   config.Burst,
	}
}

// Allow checks if a request from the given key should be allowed
func (l *Limiter) Allow(key string) bool {
	l.hits.Add(1)
	lim := l.clients.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(l.limit, l.burst)
	})
	if lim.Allow() {
		return true
	}
	l.rejected.Add(1)
	return false
}

// RetryAfter is the whole number of seconds until one more token is available.
func (l *Limiter) RetryAfter() int {
	return max(1, (60+l.perMin-1)/l.perMin)
}

// Cleaner exposes the client table so a cache.Manager can sweep idle entries.
func (l *Limiter) Cleaner() cache.Cleaner {
	return l.clients
}

// Middleware rejects requests whose client key is over its limit. onLimit
// writes the rejection; Retry-After is already set when it runs.
func (l *Limiter) Middleware(extractKey func(*http.Request) string, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(extractKey(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(l.RetryAfter()))
				onLimit(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetMetrics returns current rate limiting metrics
func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   l.hits.Load(),
		Rejected:    l.rejected.Load(),
		ClientCount: int64(l.clients.Size()),
	}
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	Rejected    int64
	ClientCount int64
}
