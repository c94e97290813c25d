package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rollt/rollt-server/internal/http/response"
	"github.com/rollt/rollt-server/internal/observability"
)

type windowState struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a per-IP fixed-window counter. State is process-local;
// a multi-replica deployment rate-limits per replica.
type RateLimiter struct {
	mu      sync.Mutex
	store   map[string]*windowState
	limit   int
	window  time.Duration
	scope   string
	cleanup time.Time
}

func NewRateLimiter(limit int, window time.Duration, scope string) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if scope == "" {
		scope = "api"
	}
	return &RateLimiter{
		store:   make(map[string]*windowState),
		limit:   limit,
		window:  window,
		scope:   scope,
		cleanup: time.Now().Add(window),
	}
}

func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.cleanup) {
		for k, st := range rl.store {
			if now.After(st.resetAt) {
				delete(rl.store, k)
			}
		}
		rl.cleanup = now.Add(rl.window)
	}

	st, ok := rl.store[key]
	if !ok || now.After(st.resetAt) {
		rl.store[key] = &windowState{count: 1, resetAt: now.Add(rl.window)}
		return true, 0
	}
	if st.count >= rl.limit {
		return false, st.resetAt.Sub(now)
	}
	st.count++
	return true, 0
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := rl.allow(ClientIP(r))
			if !allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny")
				seconds := int(retryAfter.Round(time.Second).Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
				response.Error(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow")
			next.ServeHTTP(w, r)
		})
	}
}
