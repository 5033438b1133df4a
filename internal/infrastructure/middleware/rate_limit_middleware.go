package middleware

import (
	"net"
	"net/http"
	"sync"

	"playcast/pkg/config"
	"playcast/pkg/errors"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipLimiters hands out one token bucket per client address.
type ipLimiters struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func (l *ipLimiters) allow(addr string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets[addr]
	if !ok {
		bucket = rate.NewLimiter(l.rps, l.burst)
		l.buckets[addr] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}

// clientIP prefers a proxy-provided address when it parses cleanly,
// falling back to the socket's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := net.ParseIP(xff); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// NewHTTPRateLimitMiddleware throttles admin API calls per client
// address. Disabled configs get a passthrough handler.
func NewHTTPRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	if !cfg.RateLimiting.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	limiters := &ipLimiters{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(cfg.RateLimiting.HTTP.RequestsPerSecond),
		burst:   cfg.RateLimiting.HTTP.Burst,
	}

	return func(c *gin.Context) {
		if !limiters.allow(clientIP(c.Request)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   string(errors.ErrCodeRateLimit),
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
