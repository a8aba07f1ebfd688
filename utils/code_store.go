package utils

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"sync"
	"time"
)

var (
	cooldowns   = map[string]time.Time{}
	cooldownsMu sync.Mutex
)

// GenerateVerificationCode creates a numeric code with given length.
func GenerateVerificationCode(n int) string {
	if n <= 0 {
		n = 6
	}
	digits := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			v = big.NewInt(time.Now().UnixNano() % 10)
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits)
}

// EmailCooldownTrySet sets a cooldown for mailing email. Returns false while a previous cooldown is active.
func EmailCooldownTrySet(email string, cooldown time.Duration) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		ok, err := rc.SetNX(ctx, "cooldown:email:"+email, "1", cooldown).Result()
		if err == nil {
			return ok
		}
		// redis unreachable: fall through to memory
	}

	now := time.Now()
	cooldownsMu.Lock()
	defer cooldownsMu.Unlock()
	for k, until := range cooldowns {
		if now.After(until) {
			delete(cooldowns, k)
		}
	}
	if until, ok := cooldowns[email]; ok && now.Before(until) {
		return false
	}
	cooldowns[email] = now.Add(cooldown)
	return true
}
