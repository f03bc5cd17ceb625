package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MsgThrottled is the detail sent with 429 responses.
const MsgThrottled = "Request was throttled. Expected available in %d seconds."

// IPRateLimiter hands out one token bucket per client IP.
//
// Only unsafe methods (POST, PUT, PATCH, DELETE) are throttled; reads are
// never limited. Buckets not used for idleTTL are dropped by Sweep so the
// map cannot grow without bound.
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	r       rate.Limit
	b       int
	idleTTL time.Duration
	now     func() time.Time

	// OnReject, when set, is called for every throttled request.
	OnReject func(r *http.Request)
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a limiter allowing rps requests per second with
// bursts of up to burst.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		clients: make(map[string]*client),
		r:       rate.Limit(rps),
		b:       burst,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

func (l *IPRateLimiter) limiter(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.r, l.b)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// Sweep forgets clients idle for longer than the TTL and returns how many
// were removed.
func (l *IPRateLimiter) Sweep() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until stop is closed.
func (l *IPRateLimiter) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Middleware rejects unsafe requests over the limit with 429 and a
// Retry-After header.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		now := l.now()
		if !l.limiter(clientIP(r), now).AllowN(now, 1) {
			if l.OnReject != nil {
				l.OnReject(r)
			}
			wait := l.retryAfter()
			w.Header().Set("Retry-After", fmt.Sprint(wait))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprintf(w, `{"detail":%q}`, fmt.Sprintf(MsgThrottled, wait))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfter is the time until one token refills, rounded up to a second.
func (l *IPRateLimiter) retryAfter() int {
	if l.r <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(l.r))))
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware runs
// earlier and has already replaced RemoteAddr with X-Forwarded-For or
// X-Real-IP when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
