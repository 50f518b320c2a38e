package middleware

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"pensionflow/pkg/cache"
	"pensionflow/pkg/logger"
)

// RateLimiter applies a fixed-window rate limit. Counters live in Redis
// when configured, otherwise in process memory.
type RateLimiter struct {
	counter cache.Counter
	limit   int
	window  time.Duration
	logger  logger.Logger
}

// NewRateLimiter constructs a RateLimiter with the given limit and window.
func NewRateLimiter(counter cache.Counter, limit int, window time.Duration, log logger.Logger) *RateLimiter {
	if log == nil {
		log = logger.NewNop()
	}
	return &RateLimiter{
		counter: counter,
		limit:   limit,
		window:  window,
		logger:  log,
	}
}

// Limit enforces the rate limit, keyed by client IP and, when available,
// the authenticated operator.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}

		key := fmt.Sprintf("ratelimit:%s", ip)
		if sub, ok := SubjectFromContext(r.Context()); ok {
			key = fmt.Sprintf("ratelimit:%s:%s", ip, sub)
		}

		count, err := rl.counter.Incr(r.Context(), key, rl.window)
		if err != nil {
			rl.logger.Error("Rate limit counter failed", map[string]interface{}{
				"error": err.Error(),
				"key":   key,
			})
			jsonError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		if count > int64(rl.limit) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			jsonError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", rl.limit-int(count)))

		next.ServeHTTP(w, r)
	})
}
