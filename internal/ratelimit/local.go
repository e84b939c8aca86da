package ratelimit

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// LocalLimiter is a per-process, per-client golang.org/x/time/rate limiter
// used as REST middleware — distinct from Limiter's distributed,
// cache-backed bucket (spec 4.9). This one bounds request rate to a single
// gateway instance before a request ever reaches the distributed limiter
// or the handler.
type LocalLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func NewLocalLimiter(requestsPerSecond float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		visitors: make(map[string]*rate.Limiter),
		r:        rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (l *LocalLimiter) visitor(clientID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[clientID]
	if !ok {
		v = rate.NewLimiter(l.r, l.burst)
		l.visitors[clientID] = v
	}
	return v
}

// Middleware rejects with 429 any request beyond the per-client local
// rate, keyed by keyFunc (typically the authenticated user ID or remote
// address).
func (l *LocalLimiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.visitor(keyFunc(r)).Allow() {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
