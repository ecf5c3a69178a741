package auth

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetMaxAttempts = 5
	resetAttemptTTL  = 15 * time.Minute
)

// RateLimiter counts password reset requests per email and per client IP in
// Redis. Once either counter reaches MaxAttempts the request is locked until
// the counter expires.
type RateLimiter struct {
	Redis       *redis.Client
	MaxAttempts int64
	Window      time.Duration
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{Redis: client, MaxAttempts: resetMaxAttempts, Window: resetAttemptTTL}
}

func (r *RateLimiter) resetAttemptEmailKey(email string) string {
	if email == "" {
		return ""
	}
	return "reset_attempts:" + strings.ToLower(strings.TrimSpace(email))
}

func (r *RateLimiter) resetAttemptIPKey(ip string) string {
	if ip == "" {
		return ""
	}
	return "reset_attempts_ip:" + ip
}

// RegisterResetAttempt records one attempt and reports whether the caller is
// now locked out, with the longest remaining lock.
func (r *RateLimiter) RegisterResetAttempt(ctx context.Context, email, ip string) (bool, time.Duration, error) {
	keys := []string{r.resetAttemptEmailKey(email), r.resetAttemptIPKey(ip)}
	locked := false
	var ttlMax time.Duration

	for _, key := range keys {
		if key == "" {
			continue
		}
		attempts, err := r.Redis.Incr(ctx, key).Result()
		if err != nil {
			return false, 0, err
		}
		if attempts == 1 {
			r.Redis.Expire(ctx, key, r.Window)
		}
		if attempts > r.MaxAttempts {
			locked = true
		}
		if ttl, _ := r.Redis.TTL(ctx, key).Result(); ttl > ttlMax {
			ttlMax = ttl
		}
	}

	return locked, ttlMax, nil
}

func (r *RateLimiter) ResetAttempts(ctx context.Context, email, ip string) {
	for _, key := range []string{r.resetAttemptEmailKey(email), r.resetAttemptIPKey(ip)} {
		if key != "" {
			r.Redis.Del(ctx, key)
		}
	}
}
