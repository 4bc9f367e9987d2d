package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type visitor struct {
	count int
	start time.Time
}

// RateLimiter is a fixed-window per-client limiter. The sign-in callback uses
// it so a misbehaving page cannot spam credential posts.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a hit for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	v, exists := rl.visitors[key]
	if !exists {
		rl.visitors[key] = &visitor{count: 1, start: now}
		return true
	}

	v.count++
	return v.count <= rl.limit
}

// sweepLocked drops visitors whose window has closed, so the next hit opens a
// fresh one. There is no background sweeper.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, v := range rl.visitors {
		if now.Sub(v.start) >= rl.window {
			delete(rl.visitors, key)
		}
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r.RemoteAddr)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func isLoopback(remoteAddr string) bool {
	ip := net.ParseIP(clientKey(remoteAddr))
	return ip != nil && ip.IsLoopback()
}
