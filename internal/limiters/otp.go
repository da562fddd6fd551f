package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrOTPCooldown         = errors.New("otp issue cooldown active")
	ErrOTPRateLimited      = errors.New("otp rate limited")
	ErrOTPRedisUnavailable = errors.New("otp redis unavailable")
)

type OTPConfig struct {
	EnableIPThrottle bool
	IPMaxAttempts    int
	IPWindow         time.Duration
}

// OTPLimiter enforces the per-(email,purpose) reissue cooldown and an
// optional per-IP fixed window shared by issue and verify.
type OTPLimiter struct {
	redis  redis.UniversalClient
	config OTPConfig
}

func NewOTPLimiter(redisClient redis.UniversalClient, cfg OTPConfig) *OTPLimiter {
	return &OTPLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckIssue enforces the reissue cooldown for one (purpose,email) pair.
// On a cooldown hit it returns the remaining wait alongside ErrOTPCooldown.
func (l *OTPLimiter) CheckIssue(ctx context.Context, purpose, email, ip string, cooldown time.Duration) (time.Duration, error) {
	key := issueCooldownKey(purpose, email)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
		}
	}

	if count > 1 {
		remaining, err := l.redis.PTTL(ctx, key).Result()
		if err != nil || remaining < 0 {
			remaining = cooldown
		}
		return remaining, ErrOTPCooldown
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, issueIPKey(ip)); err != nil {
			return 0, err
		}
	}

	return 0, nil
}

// CheckVerify enforces only the per-IP window. Per-challenge attempt caps
// live in the OTP record itself.
func (l *OTPLimiter) CheckVerify(ctx context.Context, ip string) error {
	if !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	return l.enforceFixedWindow(ctx, verifyIPKey(ip))
}

func (l *OTPLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.IPWindow).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrOTPRedisUnavailable, err)
		}
	}

	if count > int64(l.config.IPMaxAttempts) {
		return ErrOTPRateLimited
	}

	return nil
}

func issueCooldownKey(purpose, email string) string {
	return "aoi:" + purpose + ":" + email
}

func issueIPKey(ip string) string {
	return "aoiip:" + ip
}

func verifyIPKey(ip string) string {
	return "aovip:" + ip
}
