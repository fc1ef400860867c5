package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterAllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3})
	h := rl.Middleware(okHandler())

	for i := 0; i < 3; i++ {
		if rec := doRequest(h, "10.0.0.1:5000"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := doRequest(h, "10.0.0.1:5000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("request over budget: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestRateLimiterIsPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1})
	h := rl.Middleware(okHandler())

	if rec := doRequest(h, "10.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Fatalf("first client: status = %d, want 200", rec.Code)
	}
	if rec := doRequest(h, "10.0.0.1:5000"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("first client, second request: status = %d, want 429", rec.Code)
	}

	// A different IP has its own bucket.
	if rec := doRequest(h, "10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Errorf("second client: status = %d, want 200", rec.Code)
	}
}

func TestClientKeyPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.9:1234"

	if got := clientKey(req); got != "192.168.1.9" {
		t.Errorf("clientKey from RemoteAddr = %q, want %q", got, "192.168.1.9")
	}

	req.Header.Set("X-Real-IP", "203.0.113.7")
	if got := clientKey(req); got != "203.0.113.7" {
		t.Errorf("clientKey with X-Real-IP = %q, want %q", got, "203.0.113.7")
	}

	// X-Forwarded-For wins, first hop only.
	req.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")
	if got := clientKey(req); got != "198.51.100.4" {
		t.Errorf("clientKey with X-Forwarded-For = %q, want %q", got, "198.51.100.4")
	}
}
