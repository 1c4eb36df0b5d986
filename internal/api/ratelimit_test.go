package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devroom/devroom/internal/serverdb"
)

const rateLimitAuth = 5

func TestRateLimiterAllowDeny(t *testing.T) {
	rl := NewRateLimiter()

	// Should allow up to the limit
	for i := 0; i < 5; i++ {
		if !rl.Allow("k1", 5) {
			t.Fatalf("expected allow on request %d", i+1)
		}
	}

	// Should deny at the limit
	if rl.Allow("k1", 5) {
		t.Fatal("expected deny after limit reached")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }

	// Exhaust the limit
	for i := 0; i < 3; i++ {
		rl.Allow("k1", 3)
	}
	if rl.Allow("k1", 3) {
		t.Fatal("expected deny after limit")
	}

	now = now.Add(61 * time.Second)

	// Should allow again after window reset
	if !rl.Allow("k1", 3) {
		t.Fatal("expected allow after window reset")
	}
}

func TestRateLimiterKeyIsolation(t *testing.T) {
	rl := NewRateLimiter()

	// Exhaust key1
	for i := 0; i < 2; i++ {
		rl.Allow("key1", 2)
	}
	if rl.Allow("key1", 2) {
		t.Fatal("expected key1 denied")
	}

	// key2 should still be allowed
	if !rl.Allow("key2", 2) {
		t.Fatal("expected key2 allowed")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("stale", 10)
	rl.Allow("fresh", 10)

	// Backdate the stale entry
	rl.mu.Lock()
	rl.buckets["stale"].windowAt = time.Now().Add(-5 * time.Minute)
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.Lock()
	_, hasStale := rl.buckets["stale"]
	_, hasFresh := rl.buckets["fresh"]
	rl.mu.Unlock()

	if hasStale {
		t.Fatal("expected stale entry to be cleaned up")
	}
	if !hasFresh {
		t.Fatal("expected fresh entry to remain")
	}
	if rl.size() != 1 {
		t.Fatalf("size = %d, want 1", rl.size())
	}
}

func testStore(t *testing.T) *serverdb.ServerDB {
	t.Helper()
	store, err := serverdb.Open("", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAuthRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter()
	store := testStore(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := authRateLimitMiddleware(rl, rateLimitAuth, store)(inner)

	// Auth endpoint should be rate limited
	for i := 0; i < rateLimitAuth; i++ {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = "1.2.3.4:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	// Next request should be denied
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	// Preflight is never limited
	req = httptest.NewRequest("OPTIONS", "/api/auth/login", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("preflight: expected 200, got %d", w.Code)
	}

	// Non-auth endpoint should pass through without rate limiting
	req = httptest.NewRequest("GET", "/healthz", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}

	events, _ := store.ListRateLimitEvents(10)
	if len(events) != 1 || events[0].EndpointClass != endpointAuth || events[0].IP != "1.2.3.4" {
		t.Fatalf("unexpected rate limit events: %+v", events)
	}
}

func TestAuthRateLimitDifferentIPs(t *testing.T) {
	rl := NewRateLimiter()
	store := testStore(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := authRateLimitMiddleware(rl, rateLimitAuth, store)(inner)

	// Exhaust IP 1
	for i := 0; i < rateLimitAuth; i++ {
		req := httptest.NewRequest("POST", "/api/auth/signup", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	// IP 2 should still be allowed
	req := httptest.NewRequest("POST", "/api/auth/signup", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("different IP: expected 200, got %d", w.Code)
	}
}

func TestSocketLimiterRecordsRefusal(t *testing.T) {
	store := testStore(t)
	l := socketLimiter{rl: NewRateLimiter(), store: store}

	if !l.Allow("exec:sock-1", 1) {
		t.Fatal("expected first execution allowed")
	}
	if l.Allow("exec:sock-1", 1) {
		t.Fatal("expected second execution refused")
	}

	events, _ := store.ListRateLimitEvents(10)
	if len(events) != 1 || events[0].Subject != "sock-1" || events[0].EndpointClass != endpointExec {
		t.Fatalf("unexpected rate limit events: %+v", events)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.1.1:4000"
	if got := clientIP(req); got != "10.1.1.1" {
		t.Fatalf("clientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.1.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("clientIP with XFF = %q", got)
	}
}
