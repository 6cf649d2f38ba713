package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"payment-reconciler/internal/shared/response"
	"payment-reconciler/pkg/logger"
	"payment-reconciler/pkg/metrics"
)

// Giới hạn số limiter để tránh cạn bộ nhớ khi bị spam từ nhiều IP
const maxIPRateLimiters = 10000

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		rate:     r,
		burst:    burst,
		now:      time.Now,
	}
}

// GetLimiter returns the limiter for ip, creating one if needed.
// At capacity the least recently seen entry is evicted.
func (l *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.limiters[ip]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	if len(l.limiters) >= maxIPRateLimiters {
		var oldestIP string
		var oldest time.Time
		for k, e := range l.limiters {
			if oldestIP == "" || e.lastSeen.Before(oldest) {
				oldestIP, oldest = k, e.lastSeen
			}
		}
		delete(l.limiters, oldestIP)
	}

	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = &rateLimiterEntry{limiter: limiter, lastSeen: now}
	return limiter
}

// Cleanup removes limiters not used within maxAge and returns how many went.
func (l *IPRateLimiter) Cleanup(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	removed := 0
	for ip, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
			removed++
		}
	}
	return removed
}

func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RateLimit is coarse edge admission per client IP. It runs before any
// signature work so forged floods are cheap to refuse.
func RateLimit(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := GetClientIP(c)
		if !l.GetLimiter(ip).Allow() {
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			logger.Warn("Rate limit exceeded", map[string]interface{}{
				"ip":   ip,
				"path": c.Request.URL.Path,
			})
			c.Header("Retry-After", "1")
			response.TooManyRequests(c, "Too many requests")
			c.Abort()
			return
		}
		c.Next()
	}
}
