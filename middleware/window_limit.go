package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/vignan/diaries/utils"
)

type visitor struct {
	windowStart time.Time
	count       int
}

// WindowLimiter counts requests per caller address in fixed windows.
// With Redis the counters are shared across instances; otherwise they live in memory.
type WindowLimiter struct {
	name   string
	limit  int
	window time.Duration
	rc     *redis.Client

	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

// NewWindowLimiter allows limit requests per window for every address, under the key name.
func NewWindowLimiter(name string, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		name:     name,
		limit:    max(limit, 1),
		window:   window,
		rc:       utils.GetRedis(),
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Middleware answers 429 with Retry-After once the caller's window is used up.
func (l *WindowLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		allowed, remaining, reset := l.Allow(ctx.ClientIP())
		ctx.Header("RateLimit-Limit", strconv.Itoa(l.limit))
		ctx.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		ctx.Header("RateLimit-Reset", strconv.Itoa(int(reset.Seconds())))
		if !allowed {
			ctx.Header("Retry-After", strconv.Itoa(max(int(reset.Seconds()), 1)))
			utils.Error(ctx, http.StatusTooManyRequests, 42902, "too_many_requests")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// Allow counts one request from addr and reports whether it is within the limit,
// how many requests remain and how long until the window resets.
func (l *WindowLimiter) Allow(addr string) (bool, int, time.Duration) {
	key := "ratelimit:" + l.name + ":" + addr
	if l.rc != nil {
		if count, ttl, err := l.incrRedis(key); err == nil {
			return count <= l.limit, max(l.limit-count, 0), ttl
		}
		utils.Sugar.Warnf("rate limit redis unavailable, using memory counters key=%s", key)
	}
	return l.incrMemory(key)
}

func (l *WindowLimiter) incrRedis(key string) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	count, err := l.rc.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := l.rc.Expire(ctx, key, l.window).Err(); err != nil {
			return 0, 0, err
		}
		return 1, l.window, nil
	}
	ttl, err := l.rc.TTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// counter lost its expiry
		_ = l.rc.Expire(ctx, key, l.window).Err()
		ttl = l.window
	}
	return int(count), ttl, nil
}

func (l *WindowLimiter) incrMemory(key string) (bool, int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, v := range l.visitors {
		if now.Sub(v.windowStart) >= l.window {
			delete(l.visitors, k)
		}
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{windowStart: now}
		l.visitors[key] = v
	}
	v.count++
	reset := l.window - now.Sub(v.windowStart)
	return v.count <= l.limit, max(l.limit-v.count, 0), reset
}
