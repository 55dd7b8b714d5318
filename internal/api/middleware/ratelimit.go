package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"
)

// RateLimiter throttles requests per client address. The burst is spent
// over burst/rps seconds, after which the window resets.
type RateLimiter struct {
	limiter *limiter.Limiter
	prefix  string
	now     func() time.Time
}

func NewRateLimiter(store limiter.Store, prefix string, rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	period := time.Second
	if rps > 0 {
		period = time.Duration(float64(burst) / rps * float64(time.Second))
	}
	return &RateLimiter{
		limiter: limiter.New(store, limiter.Rate{Period: period, Limit: int64(burst)}),
		prefix:  prefix,
		now:     time.Now,
	}
}

func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lctx, err := rl.limiter.Get(r.Context(), rl.prefix+":"+clientIP(r))
		if err != nil {
			// Store outages must not take login down.
			slog.WarnContext(r.Context(), "rate limiter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retry := lctx.Reset - rl.now().Unix()
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
