package api

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/handlers"
)

// RateLimiter applies a fixed-window request limit per client address.
type RateLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	requests map[string]*clientRequests
}

type clientRequests struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:      max,
		window:   window,
		now:      time.Now,
		requests: make(map[string]*clientRequests),
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := clientAddr(r)

		l.mu.Lock()
		now := l.now()

		// Clean up old entries
		for ip, req := range l.requests {
			if now.Sub(req.windowStart) > l.window {
				delete(l.requests, ip)
			}
		}

		client, exists := l.requests[clientIP]
		if !exists {
			client = &clientRequests{windowStart: now}
			l.requests[clientIP] = client
		}

		allowed := client.count < l.max
		if allowed {
			client.count++
		}
		remaining := l.max - client.count
		reset := client.windowStart.Add(l.window)
		l.mu.Unlock()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", reset.UTC().Format(time.RFC3339))

		if !allowed {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WithMiddleware wraps h with access logging and panic recovery.
func WithMiddleware(h http.Handler, accessLog io.Writer) http.Handler {
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CombinedLoggingHandler(accessLog, h),
	)
}
