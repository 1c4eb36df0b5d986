package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/devroom/devroom/internal/serverdb"
)

// RateLimiter implements per-key fixed-window rate limiting.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count    int
	windowAt time.Time
}

// NewRateLimiter creates an empty RateLimiter. Call Run to evict stale buckets.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

// Allow checks if the key is within the rate limit (limit per 1-minute window).
func (rl *RateLimiter) Allow(key string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowAt) >= time.Minute {
		rl.buckets[key] = &bucket{count: 1, windowAt: now}
		return true
	}
	if b.count >= limit {
		return false
	}
	b.count++
	return true
}

// Run evicts expired buckets every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-2 * time.Minute)
	for k, b := range rl.buckets {
		if b.windowAt.Before(cutoff) {
			delete(rl.buckets, k)
		}
	}
}

func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// Endpoint classes recorded with rate limit events.
const (
	endpointAuth  = "auth"
	endpointDevAI = "devai"
	endpointExec  = "exec"
)

// authRateLimitMiddleware rate-limits auth endpoints by IP address.
// Applied globally; only acts on /api/auth/ paths.
// When a rate limit is exceeded, the event is logged to the store.
func authRateLimitMiddleware(rl *RateLimiter, limit int, store *serverdb.ServerDB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/auth/") && r.Method != http.MethodOptions {
				ip := clientIP(r)
				if !rl.Allow("ip:"+ip, limit) {
					if err := store.InsertRateLimitEvent("", ip, endpointAuth); err != nil {
						slog.Error("log rate limit event", "err", err)
					}
					writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withIPRateLimit wraps a handler with per-IP rate limiting for one
// endpoint class. When a rate limit is exceeded, the event is logged to the store.
func (s *Server) withIPRateLimit(handler http.HandlerFunc, class string, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.Allow(class+":"+ip, limit) {
			subject := ""
			if u := getUserFromContext(r.Context()); u != nil {
				subject = u.UserID
			}
			if err := s.store.InsertRateLimitEvent(subject, ip, class); err != nil {
				logFor(r.Context()).Error("log rate limit event", "err", err)
			}
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		handler(w, r)
	}
}

// socketLimiter adapts the shared limiter for compileCode events and
// records refusals.
type socketLimiter struct {
	rl    *RateLimiter
	store *serverdb.ServerDB
}

func (l socketLimiter) Allow(key string, limit int) bool {
	if l.rl.Allow(key, limit) {
		return true
	}
	if err := l.store.InsertRateLimitEvent(strings.TrimPrefix(key, "exec:"), "", endpointExec); err != nil {
		slog.Error("log rate limit event", "err", err)
	}
	return false
}

// clientIP extracts the client IP from the request, checking X-Forwarded-For first.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
