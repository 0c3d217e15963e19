package middlewares

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/gin-gonic/gin"
)

// Counter increments a fixed-window counter and reports the count so far and
// how long until the window resets.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

type RateLimiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	prom    *observability.Prom
}

func NewRateLimiter(counter Counter, limit int, window time.Duration, prom *observability.Prom) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		prom:    prom,
	}
}

// Middleware enforces the limit for a key derived from the request. Counter
// errors let the request through so a Redis outage cannot lock users out.
func (rl *RateLimiter) Middleware(scope string, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = clientIP(c)
		}

		count, resetIn, err := rl.counter.Incr(c.Request.Context(), "ratelimit:"+scope+":"+key, rl.window)
		if err != nil {
			logger(c).WarnContext(c.Request.Context(), "rate_limit_unavailable", "scope", scope, "err", err)
			c.Next()
			return
		}

		if count > rl.limit {
			retryAfter := int(resetIn.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}

			rl.prom.IncRateLimited(scope)
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Please try again shortly.",
				"code":  "rate_limited",
			})
			return
		}

		c.Next()
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)
	if err == nil && host != "" {
		return host
	}

	return ip
}

// MemoryCounter keeps windows in process memory; fine for a single replica.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count     int64
	windowEnd time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (m *MemoryCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.windowEnd) {
		m.sweep(now)
		b = &bucket{windowEnd: now.Add(window)}
		m.buckets[key] = b
	}
	b.count++

	return b.count, b.windowEnd.Sub(now), nil
}

// sweep drops expired windows so one-off clients do not accumulate.
func (m *MemoryCounter) sweep(now time.Time) {
	if len(m.buckets) < 1024 {
		return
	}
	for k, b := range m.buckets {
		if !now.Before(b.windowEnd) {
			delete(m.buckets, k)
		}
	}
}
