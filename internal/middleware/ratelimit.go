package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cortexai/querygate/internal/models"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client. A bucket holds
// limitPerMinute tokens and refills evenly over a minute.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	every   rate.Limit
	burst   int
	now     func() time.Time
}

func NewRateLimiter(limitPerMinute int) *RateLimiter {
	if limitPerMinute <= 0 {
		limitPerMinute = 1
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		every:   rate.Every(time.Minute / time.Duration(limitPerMinute)),
		burst:   limitPerMinute,
		now:     time.Now,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if cl, ok := rl.clients[key]; ok {
		cl.lastSeen = rl.now()
		return cl.limiter
	}
	cl := &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.burst), lastSeen: rl.now()}
	rl.clients[key] = cl
	return cl.limiter
}

// Sweep drops clients idle for longer than idle.
func (rl *RateLimiter) Sweep(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	n := 0
	for key, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			n++
		}
	}
	return n
}

// Allow reports whether key may make a request now, and how long to wait
// otherwise.
func (rl *RateLimiter) Allow(key string) (remaining int, retryAfter time.Duration, ok bool) {
	l := rl.limiter(key)
	res := l.Reserve()
	if !res.OK() {
		return 0, time.Minute, false
	}
	if d := res.Delay(); d > 0 {
		res.Cancel()
		return 0, d, false
	}
	return int(l.Tokens()), 0, true
}

// RateLimit keys clients by API key, falling back to the remote IP.
func RateLimit(limitPerMinute int) func(http.Handler) http.Handler {
	rl := NewRateLimiter(limitPerMinute)
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			rl.Sweep(10 * time.Minute)
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = clientIP(r)
			}

			remaining, wait, ok := rl.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				models.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
