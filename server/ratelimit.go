package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 5 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles credential and contact endpoints per client address.
type RateLimiter struct {
	enabled  bool
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter allows requests calls per period from each address. A disabled limiter
// passes every request through.
func NewRateLimiter(requests int, per time.Duration, enabled bool) *RateLimiter {
	if requests < 1 {
		requests = 1
	}
	if per <= 0 {
		per = time.Minute
	}
	rl := &RateLimiter{
		enabled:  enabled,
		limit:    rate.Limit(float64(requests) / per.Seconds()),
		burst:    requests,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}
	if enabled {
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next(w, r)
			return
		}
		key := clientAddr(r)
		if !rl.limiterFor(key).Allow() {
			zerolog.Ctx(r.Context()).Warn().Str("client", key).Str("path", r.URL.Path).Msg("rate limit exceeded")
			rl.writeTooManyRequests(w)
			return
		}
		next(w, r)
	}
}

// Len is the number of addresses currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, ok := rl.limiters[key]; ok {
		cl.lastAccess = time.Now()
		return cl.limiter
	}
	cl := &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst), lastAccess: time.Now()}
	rl.limiters[key] = cl
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup forgets addresses idle for two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > 2*limiterCleanupInterval {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) writeTooManyRequests(w http.ResponseWriter) {
	retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later")
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
