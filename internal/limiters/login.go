package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginRateLimited      = errors.New("login rate limited")
	ErrLoginRedisUnavailable = errors.New("login redis unavailable")
)

type LoginConfig struct {
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

// LoginLimiter is a fixed-window throttle over failed-or-not login calls,
// keyed by identifier and optionally by caller IP.
type LoginLimiter struct {
	redis  redis.UniversalClient
	config LoginConfig
}

func NewLoginLimiter(redisClient redis.UniversalClient, cfg LoginConfig) *LoginLimiter {
	return &LoginLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *LoginLimiter) Check(ctx context.Context, identifier, ip string) error {
	if err := l.enforceFixedWindow(ctx, loginIdentifierKey(identifier)); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, loginIPKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

func (l *LoginLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrLoginRedisUnavailable, err)
		}
	}

	if count > int64(l.config.MaxAttempts) {
		return ErrLoginRateLimited
	}

	return nil
}

func loginIdentifierKey(identifier string) string {
	return "ali:" + identifier
}

func loginIPKey(ip string) string {
	return "alip:" + ip
}
