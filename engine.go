package authcore

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/propspace/authcore/internal/limiters"
	"github.com/propspace/authcore/internal/stores"
	"github.com/propspace/authcore/jwt"
	"github.com/propspace/authcore/password"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config          Config
	accounts        AccountProvider
	sender          OTPSender
	otpStore        *stores.OTPStore
	resetStore      *stores.ResetSessionStore
	otpLimiter      *limiters.OTPLimiter
	recoveryLimiter *limiters.RecoveryLimiter
	loginLimiter    *limiters.LoginLimiter
	audit           *auditDispatcher
	metrics         *Metrics
	passwordHash    *password.Argon2
	jwtManager      *jwt.Manager
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close returns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ParseAccessToken validates a bearer token issued by [Engine.Login] and
// returns its claims. Servers use it to resolve the calling account.
func (e *Engine) ParseAccessToken(token string) (*jwt.AccessClaims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// sleepEnumerationDelay blocks for a random 20-40ms so that the unknown-
// identifier path is not distinguishable from a real verification by
// response timing alone.
func (e *Engine) sleepEnumerationDelay(ctx context.Context) {
	var raw [2]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return
	}
	jitter := time.Duration(binary.BigEndian.Uint16(raw[:])%20) * time.Millisecond
	delay := 20*time.Millisecond + jitter

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
