package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// voteLimiter hands out one token bucket per authenticated user, with idle
// entries swept periodically.
type voteLimiter struct {
	mu      sync.Mutex
	entries map[int64]*limiterEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newVoteLimiter(rps float64, burst int) *voteLimiter {
	return &voteLimiter{
		entries: make(map[int64]*limiterEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

func (l *voteLimiter) get(userID int64) *rate.Limiter {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[userID]; ok {
		ent.lastSeen = now
		return ent.lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.entries[userID] = &limiterEntry{lim: lim, lastSeen: now}
	return lim
}

func (l *voteLimiter) cleanup() {
	cutoff := time.Now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, id)
		}
	}
}

// RateLimitMiddleware rejects mutating requests beyond the per-user budget
// with 429. Must run after AuthMiddleware.
func RateLimitMiddleware(rps float64, burst int) func(next http.Handler) http.Handler {
	limiter := newVoteLimiter(rps, burst)
	go func() {
		for range time.Tick(2 * time.Minute) {
			limiter.cleanup()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := callerFrom(r)
			if !ok {
				http.Error(w, "Unauthorized: missing user context", http.StatusUnauthorized)
				return
			}
			if !limiter.get(caller.UserID).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
