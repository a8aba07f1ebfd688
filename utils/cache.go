package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL = time.Minute
	cacheOpTimeout  = 2 * time.Second
)

// Keys of cached public reads. Everything under CacheFeedPrefix and
// CacheTagsKey is dropped whenever published content changes.
const (
	CacheFeedPrefix    = "cache:posts:feed:"
	CacheTagsKey       = "cache:posts:tags"
	CacheProfilePrefix = "cache:users:profile:"
)

// ServeCached writes a previously cached success envelope for key.
// It reports false on a miss or when Redis is disabled.
func ServeCached(ctx *gin.Context, key string) bool {
	rc := GetRedis()
	if rc == nil {
		return false
	}
	c, cancel := context.WithTimeout(ctx.Request.Context(), cacheOpTimeout)
	defer cancel()
	body, err := rc.Get(c, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			Logger.Debug("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
	return true
}

// CacheSuccess stores data wrapped in the success envelope so ServeCached can replay it verbatim.
func CacheSuccess(key string, data interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	body, err := json.Marshal(JSONResponse{Code: 0, Message: "success", Data: data})
	if err != nil {
		Logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := rc.Set(ctx, key, body, ttl).Err(); err != nil {
		Logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateByPrefix unlinks every key starting with prefix.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := rc.Unlink(ctx, batch...).Err(); err != nil {
			Logger.Warn("cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
		batch = batch[:0]
	}
	iter := rc.Scan(ctx, 0, prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 500 {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		Logger.Warn("cache scan failed", zap.String("prefix", prefix), zap.Error(err))
	}
}

// InvalidatePostCaches drops every cached feed page and the tag list.
func InvalidatePostCaches() {
	InvalidateByPrefix(CacheFeedPrefix)
	InvalidateByPrefix(CacheTagsKey)
}

// InvalidateProfile drops the cached public profile of username.
func InvalidateProfile(username string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := rc.Del(ctx, CacheProfilePrefix+username).Err(); err != nil {
		Logger.Warn("profile cache invalidation failed", zap.String("username", username), zap.Error(err))
	}
}
