package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var incrWithTTLScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return c
`)

// LoginLimiter counts failed logins per email in hourly fixed windows.
// A limit <= 0 disables it.
type LoginLimiter struct {
	redis *redis.Client
	limit int64
}

func NewLoginLimiter(rdb *redis.Client, limit int64) *LoginLimiter {
	return &LoginLimiter{redis: rdb, limit: limit}
}

// Blocked reports whether the email has used up its failures for the window
// containing now.
func (l *LoginLimiter) Blocked(ctx context.Context, email string, now time.Time) (bool, time.Time, error) {
	if l == nil || l.limit <= 0 {
		return false, time.Time{}, nil
	}
	key, _, windowEnd := l.window(email, now)
	n, err := l.redis.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return false, windowEnd, nil
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("read login failures: %w", err)
	}
	return n >= l.limit, windowEnd, nil
}

// RecordFailure increments the counter and returns the new count.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email string, now time.Time) (int64, error) {
	if l == nil || l.limit <= 0 {
		return 0, nil
	}
	key, ttl, _ := l.window(email, now)
	n, err := incrWithTTLScript.Run(ctx, l.redis, []string{key}, ttl).Int64()
	if err != nil {
		return 0, fmt.Errorf("rate limit script: %w", err)
	}
	return n, nil
}

// Reset clears the current window after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, email string, now time.Time) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	key, _, _ := l.window(email, now)
	if err := l.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}

func (l *LoginLimiter) window(email string, now time.Time) (key string, ttl int64, windowEnd time.Time) {
	windowStart := now.UTC().Truncate(time.Hour)
	windowEnd = windowStart.Add(time.Hour)
	ttl = int64(windowEnd.Sub(now.UTC()).Seconds())
	if ttl < 1 {
		ttl = 1
	}
	email = strings.ToLower(strings.TrimSpace(email))
	key = fmt.Sprintf("querydesk:login:%s:%s", email, windowStart.Format("2006010215"))
	return key, ttl, windowEnd
}
