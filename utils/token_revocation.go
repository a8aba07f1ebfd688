package utils

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

const revokedKeyPrefix = "diaries:revoked:"

var (
	revoked   = map[string]time.Time{}
	revokedMu sync.Mutex
)

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RevokeToken rejects token until its own expiry. Already expired tokens are ignored.
func RevokeToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	key := tokenDigest(token)
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, revokedKeyPrefix+key, "1", ttl).Err(); err == nil {
			return
		}
	}
	now := time.Now()
	revokedMu.Lock()
	defer revokedMu.Unlock()
	for k, exp := range revoked {
		if now.After(exp) {
			delete(revoked, k)
		}
	}
	revoked[key] = expiresAt
}

// IsTokenRevoked reports whether token was signed out before it expired.
// A failing Redis counts as not revoked.
func IsTokenRevoked(token string) bool {
	key := tokenDigest(token)
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := rc.Exists(ctx, revokedKeyPrefix+key).Result(); err == nil && n > 0 {
			return true
		}
	}

	revokedMu.Lock()
	defer revokedMu.Unlock()
	exp, ok := revoked[key]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(revoked, key)
		return false
	}
	return true
}
