package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiterConfig configures per-client request limiting.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// limiterMap keeps one token bucket per client IP.
type limiterMap struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	config   RateLimiterConfig
}

func newLimiterMap(config RateLimiterConfig) *limiterMap {
	lm := &limiterMap{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
	go lm.cleanup()
	return lm
}

func (lm *limiterMap) get(ip string) *rate.Limiter {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	limiter, ok := lm.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(lm.config.RequestsPerSecond), lm.config.Burst)
		lm.limiters[ip] = limiter
	}
	return limiter
}

// cleanup resets the map when it grows past a bound so idle clients do not
// leak buckets forever.
func (lm *limiterMap) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		lm.mu.Lock()
		if len(lm.limiters) > 1000 {
			lm.limiters = make(map[string]*rate.Limiter)
		}
		lm.mu.Unlock()
	}
}

// RateLimiterMiddleware rejects clients exceeding their per-IP budget with
// 429 and a retry-after hint.
func RateLimiterMiddleware(config RateLimiterConfig) gin.HandlerFunc {
	limiters := newLimiterMap(config)

	return func(c *gin.Context) {
		limiter := limiters.get(c.ClientIP())
		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := reservation.DelayFrom(time.Now()).Seconds()
			reservation.Cancel()

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded. Please try again later.",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
