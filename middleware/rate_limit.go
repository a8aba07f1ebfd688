package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vignan/diaries/utils"
)

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// TokenBucket is a per-IP token bucket limiter. Idle buckets expire after five minutes.
type TokenBucket struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rateLimiter
}

// NewTokenBucket allows perMinute requests per IP with a burst of half that.
func NewTokenBucket(perMinute int) *TokenBucket {
	perMinute = max(perMinute, 1)
	return &TokenBucket{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		limiters: map[string]*rateLimiter{},
	}
}

// Middleware rejects requests once the caller's bucket is empty.
func (tb *TokenBucket) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !tb.Allow(ctx.ClientIP()) {
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// Allow takes one token from key's bucket.
func (tb *TokenBucket) Allow(key string) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	for k, l := range tb.limiters {
		if now.After(l.expires) {
			delete(tb.limiters, k)
		}
	}

	l, ok := tb.limiters[key]
	if !ok {
		l = &rateLimiter{limiter: rate.NewLimiter(tb.limit, tb.burst)}
		tb.limiters[key] = l
	}
	l.expires = now.Add(5 * time.Minute)
	return l.limiter.AllowN(now, 1)
}
