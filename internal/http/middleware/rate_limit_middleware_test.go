package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func limitedHandler(limit int, window time.Duration) http.Handler {
	return NewRateLimiter(limit, window, "test").Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiterDeniesOverLimit(t *testing.T) {
	h := limitedHandler(3, time.Minute)

	for i := 0; i < 3; i++ {
		if rr := hit(h, "10.0.0.1:1234"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	rr := hit(h, "10.0.0.1:1234")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	h := limitedHandler(1, time.Minute)

	if rr := hit(h, "10.0.0.1:1234"); rr.Code != http.StatusOK {
		t.Fatalf("first client: %d", rr.Code)
	}
	if rr := hit(h, "10.0.0.1:1234"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("first client should be limited, got %d", rr.Code)
	}
	if rr := hit(h, "10.0.0.2:1234"); rr.Code != http.StatusOK {
		t.Fatalf("second client must be unaffected, got %d", rr.Code)
	}
}

func TestRateLimiterWindowResets(t *testing.T) {
	h := limitedHandler(1, 20*time.Millisecond)

	if rr := hit(h, "10.0.0.1:1234"); rr.Code != http.StatusOK {
		t.Fatalf("first request: %d", rr.Code)
	}
	if rr := hit(h, "10.0.0.1:1234"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected limit, got %d", rr.Code)
	}

	time.Sleep(30 * time.Millisecond)
	if rr := hit(h, "10.0.0.1:1234"); rr.Code != http.StatusOK {
		t.Fatalf("expected fresh window, got %d", rr.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := ClientIP(req); got != "10.0.0.1" {
		t.Fatalf("socket ip: %q", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("forwarded ip: %q", got)
	}
}
