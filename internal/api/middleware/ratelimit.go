package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/geoharvest/internal/api/response"
	"github.com/kiranshivaraju/geoharvest/internal/cache"
	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
)

const (
	defaultRequestsPerMinute = 60
	rateWindow               = time.Minute
)

// RateLimit caps each API key (or anonymous client) at a number of tool
// server requests per calendar minute, counted in Redis.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
	now            func() time.Time
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, now: time.Now}
}

// Limit applies rate limiting based on the key_prefix set by auth middleware.
// Redis errors let the request through.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := KeyPrefix(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		now := rl.now()
		window := now.Truncate(rateWindow)
		reset := window.Add(rateWindow)

		// The key outlives its window by a second so a late increment never
		// starts a fresh counter for a window that is already over.
		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(prefix, window.Unix()), reset.Sub(now)+time.Second)
		if err != nil {
			slog.Warn("rate limit check failed",
				"error", err,
				"key_prefix", prefix,
				"request_id", RequestIDFrom(r.Context()),
			)
			next.ServeHTTP(w, r)
			return
		}

		remaining := max(rl.requestsPerMin-int(count), 0)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(rl.requestsPerMin) {
			retryAfter := max(int(reset.Sub(now).Round(time.Second)/time.Second), 1)
			telemetry.RateLimitRejects.Inc()
			slog.Info("tool server request rate limited",
				"key_prefix", prefix,
				"path", r.URL.Path,
				"request_id", RequestIDFrom(r.Context()),
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			response.Error(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Request limit for this API key reached, retry after the current minute",
				map[string]any{
					"limit_per_minute":    rl.requestsPerMin,
					"retry_after_seconds": retryAfter,
				})
			return
		}

		next.ServeHTTP(w, r)
	})
}
