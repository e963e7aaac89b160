package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type rateWindow struct {
	count      int
	windowEnds time.Time
}

// IPRateLimiter is a fixed-window per-IP limiter. The entry map is capped;
// when full, expired windows are evicted before new IPs are admitted, so a
// scan across many source addresses cannot grow memory without bound.
type IPRateLimiter struct {
	mu         sync.Mutex
	limit      int
	window     time.Duration
	maxEntries int
	windows    map[string]rateWindow
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return NewIPRateLimiterWithMaxEntries(limit, window, 10000)
}

func NewIPRateLimiterWithMaxEntries(limit int, window time.Duration, maxEntries int) *IPRateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &IPRateLimiter{
		limit:      limit,
		window:     window,
		maxEntries: maxEntries,
		windows:    map[string]rateWindow{},
	}
}

func (rl *IPRateLimiter) Middleware(message string) func(http.Handler) http.Handler {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r.RemoteAddr)
			if ip == "" {
				ip = "unknown"
			}

			if !rl.allow(ip, time.Now()) {
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", message, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *IPRateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, known := rl.windows[ip]
	if entry.windowEnds.Before(now) {
		entry = rateWindow{count: 0, windowEnds: now.Add(rl.window)}
	}

	if !known && len(rl.windows) >= rl.maxEntries {
		rl.evictExpired(now)
		if len(rl.windows) >= rl.maxEntries {
			// Full of live windows; fail open rather than punish new IPs.
			return true
		}
	}

	entry.count++
	rl.windows[ip] = entry
	return entry.count <= rl.limit
}

func (rl *IPRateLimiter) evictExpired(now time.Time) {
	for ip, entry := range rl.windows {
		if entry.windowEnds.Before(now) {
			delete(rl.windows, ip)
		}
	}
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
