// internal/middleware/rate_limit.go
package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/gitsubas/blingblingstore-sub000/internal/utils"
)

const (
	visitorTTL      = 3 * time.Minute
	cleanupInterval = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller. Signed-in callers are keyed
// by user ID, everyone else by client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

func NewRateLimiter(limit rate.Limit, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
	}
	go rl.sweep()
	return rl
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for now := range ticker.C {
		rl.mu.Lock()
		for key, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func callerKey(c *gin.Context) string {
	if userID, ok := utils.GetUserIDFromContext(c); ok && userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(callerKey(c)).Allow() {
			if rl.limit > 0 {
				retry := time.Duration(float64(time.Second) / float64(rl.limit))
				c.Header("Retry-After", strconv.Itoa(int(retry.Seconds()+0.5)))
			}
			utils.TooManyRequestsResponse(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

var (
	generalLimiter  = NewRateLimiter(rate.Limit(10), 20)            // 10 req/s per caller
	authLimiter     = NewRateLimiter(rate.Every(12*time.Second), 5) // 5 per minute
	uploadLimiter   = NewRateLimiter(rate.Every(6*time.Second), 10) // 10 per minute
	checkoutLimiter = NewRateLimiter(rate.Every(6*time.Second), 5)  // 10 per minute
)

func GeneralRateLimit() gin.HandlerFunc {
	return generalLimiter.Middleware()
}

// AuthRateLimit throttles login and registration attempts.
func AuthRateLimit() gin.HandlerFunc {
	return authLimiter.Middleware()
}

func UploadRateLimit() gin.HandlerFunc {
	return uploadLimiter.Middleware()
}

// CheckoutRateLimit guards order placement and checkout. Mount it after
// AuthRequired so buckets are per user.
func CheckoutRateLimit() gin.HandlerFunc {
	return checkoutLimiter.Middleware()
}
