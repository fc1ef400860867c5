package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines a requests-per-window policy.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// StrictLimit is the policy applied to the credential endpoints (login and
// everything OTP): 5 requests per minute per client, with the whole
// allowance available as a burst. Neither the upstream behaviour nor the
// OTP protocol has any attempt lockout of its own, so this window is the
// only thing standing between a 6-digit code and an online brute force —
// at 5 tries a minute the code expires (15 min) after at most 75 guesses
// out of a million.
var StrictLimit = RateLimitConfig{
	RequestsPerWindow: 5,
	Window:            time.Minute,
	Burst:             5,
}

// clientLimiter pairs a token bucket with its last use, so idle entries
// can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket to the routes it wraps.
// Clients are keyed by IP (X-Forwarded-For aware — chi's RealIP runs
// before us, but direct deployments hit the fallback parsing here).
type RateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter creates a RateLimiter with the given policy and starts
// the background sweep that drops buckets idle for over ten minutes.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*clientLimiter),
	}
	go rl.sweep()
	return rl
}

// Middleware wraps next with the rate limit. Rejections are 429 with a
// Retry-After hint.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "60")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limited","message":"too many requests, slow down"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[key]
	if !ok {
		limit := rate.Every(rl.cfg.Window / time.Duration(rl.cfg.RequestsPerWindow))
		cl = &clientLimiter{limiter: rate.NewLimiter(limit, rl.cfg.Burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// sweep evicts buckets that have not been touched for ten minutes. Without
// it the map grows one entry per client IP forever.
func (rl *RateLimiter) sweep() {
	const idle = 10 * time.Minute
	for range time.Tick(time.Minute) {
		rl.mu.Lock()
		for key, cl := range rl.clients {
			if time.Since(cl.lastSeen) > idle {
				delete(rl.clients, key)
			}
		}
		rl.mu.Unlock()
	}
}

// clientKey extracts the client IP for rate-limiting purposes.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if parts := strings.Split(xff, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
