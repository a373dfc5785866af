package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"
)

func TestLimiterIsPerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 2)
	defer l.Stop()

	a := l.GetLimiter("10.0.0.1")
	if a != l.GetLimiter("10.0.0.1") {
		t.Fatalf("the same IP must share a bucket")
	}

	if !a.Allow() || !a.Allow() {
		t.Fatalf("burst should allow two events")
	}
	if a.Allow() {
		t.Fatalf("third event should be limited")
	}
	if !l.GetLimiter("10.0.0.2").Allow() {
		t.Fatalf("another IP must have its own bucket")
	}

	l.Stop()
	l.Stop()
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(0.001), 1)
	defer l.Stop()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	h.ServeHTTP(first, req)
	if first.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.ServeHTTP(second, req)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "198.51.100.4:1234"
	if got := ClientIP(req); got != "198.51.100.4" {
		t.Fatalf("ClientIP = %q", got)
	}

	req.RemoteAddr = "198.51.100.5"
	if got := ClientIP(req); got != "198.51.100.5" {
		t.Fatalf("ClientIP without port = %q", got)
	}

	req.RemoteAddr = ""
	if got := ClientIP(req); got != "unknown_ip" {
		t.Fatalf("ClientIP for empty address = %q", got)
	}
}
