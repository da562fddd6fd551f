package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRecoveryRateLimited      = errors.New("recovery rate limited")
	ErrRecoveryRedisUnavailable = errors.New("recovery redis unavailable")
)

type RecoveryConfig struct {
	EnableIPThrottle bool
	IPMaxAttempts    int
	IPWindow         time.Duration
}

// RecoveryLimiter throttles the reset-completion endpoints per caller IP.
// Per-session attempt caps are enforced inside the session store.
type RecoveryLimiter struct {
	redis  redis.UniversalClient
	config RecoveryConfig
}

func NewRecoveryLimiter(redisClient redis.UniversalClient, cfg RecoveryConfig) *RecoveryLimiter {
	return &RecoveryLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *RecoveryLimiter) Check(ctx context.Context, ip string) error {
	if !l.config.EnableIPThrottle || ip == "" {
		return nil
	}

	key := recoveryIPKey(ip)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecoveryRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.IPWindow).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRecoveryRedisUnavailable, err)
		}
	}

	if count > int64(l.config.IPMaxAttempts) {
		return ErrRecoveryRateLimited
	}

	return nil
}

func recoveryIPKey(ip string) string {
	return "arcip:" + ip
}
