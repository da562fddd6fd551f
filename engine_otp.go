package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/propspace/authcore/internal"
	"github.com/propspace/authcore/internal/limiters"
	"github.com/propspace/authcore/internal/stores"
)

// otpExpiryGrace is how long a challenge key survives past its deadline for
// the sake of expiry reporting.
const otpExpiryGrace = time.Minute

// IssueOTP generates a one-time code for email, stores the challenge, and
// hands the plaintext code to the configured sender. Reissuing before the
// purpose's cooldown has elapsed fails with ErrOTPRateLimited carrying a
// retry-after hint; reissuing after it supersedes the previous code.
//
// For PurposeForgotPassword an unknown email is indistinguishable from a
// known one: the engine does the same amount of work, sleeps a random
// 20-40ms, and reports success without storing or sending anything.
func (e *Engine) IssueOTP(ctx context.Context, email string, purpose OTPPurpose) error {
	if e == nil || e.otpStore == nil || e.otpLimiter == nil || e.sender == nil {
		return ErrEngineNotReady
	}

	switch purpose {
	case PurposeSignup, PurposeForgotPassword:
	default:
		return ErrInvalidPurpose
	}

	email = normalizeEmail(email)
	if !isValidEmail(email) {
		e.emitAudit(ctx, auditEventOTPIssueFailure, false, "", email, ErrInvalidEmail, func() map[string]string {
			return map[string]string{
				"purpose": purpose.String(),
				"reason":  "invalid_email",
			}
		})
		return ErrInvalidEmail
	}

	cooldown := e.config.OTP.CooldownFor(purpose)
	retryAfter, err := e.otpLimiter.CheckIssue(ctx, purpose.String(), email, clientIPFromContext(ctx), cooldown)
	if err != nil {
		mapped := mapOTPLimiterError(err, retryAfter)
		if errors.Is(mapped, ErrOTPRateLimited) {
			e.metricInc(MetricOTPIssueRateLimited)
			e.emitAudit(ctx, auditEventOTPIssueRateLimited, false, "", email, mapped, func() map[string]string {
				return map[string]string{
					"purpose": purpose.String(),
				}
			})
			e.emitRateLimit(ctx, "otp_issue", func() map[string]string {
				return map[string]string{
					"purpose": purpose.String(),
				}
			})
		}
		return mapped
	}

	accountID := ""
	account, lookupErr := e.accounts.GetAccountByEmail(ctx, email)
	switch {
	case lookupErr == nil:
		if purpose == PurposeSignup {
			e.emitAudit(ctx, auditEventOTPIssueFailure, false, account.AccountID, email, ErrAccountExists, func() map[string]string {
				return map[string]string{
					"purpose": purpose.String(),
					"reason":  "duplicate_account",
				}
			})
			return ErrAccountExists
		}
		accountID = account.AccountID
	case errors.Is(lookupErr, ErrProviderNotFound):
		if purpose == PurposeForgotPassword {
			// Same work as the real path, then pretend success.
			_, _ = internal.NewOTPCode(e.config.OTP.Digits)
			e.sleepEnumerationDelay(ctx)
			e.emitAudit(ctx, auditEventOTPIssueFailure, false, "", email, ErrAccountNotFound, func() map[string]string {
				return map[string]string{
					"purpose": purpose.String(),
					"reason":  "unknown_account",
				}
			})
			return nil
		}
	default:
		return ErrAccountUnavailable
	}

	code, err := internal.NewOTPCode(e.config.OTP.Digits)
	if err != nil {
		return err
	}

	now := time.Now()
	record := &stores.OTPRecord{
		AccountID: accountID,
		CodeHash:  internal.HashOTPCode(code),
		ExpiresAt: now.Add(e.config.OTP.TTL).Unix(),
		Attempts:  0,
		Purpose:   int(purpose),
	}

	// The key outlives the logical deadline so a late verify can still read
	// the record and report expiry rather than a missing challenge. Redis
	// reaps the key once the grace window closes.
	if err := e.otpStore.Save(ctx, email, record, e.config.OTP.TTL+otpExpiryGrace); err != nil {
		return ErrOTPUnavailable
	}

	if err := e.sender.SendOTP(ctx, email, code, purpose); err != nil {
		e.metricInc(MetricOTPDeliveryFailed)
		e.emitAudit(ctx, auditEventOTPIssueFailure, false, accountID, email, ErrDeliveryFailed, func() map[string]string {
			return map[string]string{
				"purpose": purpose.String(),
				"reason":  "delivery_failed",
			}
		})
		return ErrDeliveryFailed
	}

	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventOTPIssued, true, accountID, email, nil, func() map[string]string {
		return map[string]string{
			"purpose": purpose.String(),
		}
	})
	return nil
}

// VerifyOTP consumes the challenge stored for email. The stored purpose is
// returned so callers can confirm the code belongs to the flow they are in.
// Consumption is single use: a correct code destroys the challenge, so a
// second verification with the same code reports ErrOTPNotFound.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string) (*VerifyOTPResult, error) {
	if e == nil || e.otpStore == nil || e.otpLimiter == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()

	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(code) != e.config.OTP.Digits || !isNumericString(code) {
		// Malformed codes are rejected without touching the store so they
		// cannot burn challenge attempts.
		e.metricInc(MetricOTPVerifyFailure)
		return nil, ErrOTPMismatch
	}

	if err := e.otpLimiter.CheckVerify(ctx, clientIPFromContext(ctx)); err != nil {
		mapped := mapOTPLimiterError(err, 0)
		if errors.Is(mapped, ErrOTPRateLimited) {
			e.emitRateLimit(ctx, "otp_verify", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		}
		return nil, mapped
	}

	record, err := e.otpStore.Consume(ctx, email, internal.HashOTPCode(code), e.config.OTP.MaxAttempts)
	if err != nil {
		mapped := mapOTPStoreError(err)
		e.metricInc(MetricOTPVerifyFailure)
		if errors.Is(mapped, ErrOTPAttemptsExceeded) {
			e.metricInc(MetricOTPAttemptsExceeded)
		}
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, "", email, mapped, nil)
		return nil, mapped
	}

	e.metricInc(MetricOTPVerifySuccess)
	e.metricObserve(MetricVerifyLatency, time.Since(start))
	e.emitAudit(ctx, auditEventOTPVerifySuccess, true, record.AccountID, email, nil, func() map[string]string {
		return map[string]string{
			"purpose": OTPPurpose(record.Purpose).String(),
		}
	})

	return &VerifyOTPResult{
		Purpose:   OTPPurpose(record.Purpose),
		AccountID: record.AccountID,
	}, nil
}

// consumeOTPForPurpose is the internal verify used by signup and recovery.
// It additionally pins the expected purpose: codes issued for another flow
// are burned and reported as a mismatch.
func (e *Engine) consumeOTPForPurpose(ctx context.Context, email, code string, purpose OTPPurpose) (*stores.OTPRecord, error) {
	if len(code) != e.config.OTP.Digits || !isNumericString(code) {
		return nil, ErrOTPMismatch
	}

	record, err := e.otpStore.Consume(ctx, email, internal.HashOTPCode(code), e.config.OTP.MaxAttempts)
	if err != nil {
		return nil, mapOTPStoreError(err)
	}
	if OTPPurpose(record.Purpose) != purpose {
		return nil, ErrOTPMismatch
	}
	return record, nil
}

func mapOTPLimiterError(err error, retryAfter time.Duration) error {
	switch {
	case errors.Is(err, limiters.ErrOTPCooldown):
		return &RetryAfterError{Err: ErrOTPRateLimited, RetryAfter: retryAfter}
	case errors.Is(err, limiters.ErrOTPRateLimited):
		return ErrOTPRateLimited
	case errors.Is(err, limiters.ErrOTPRedisUnavailable):
		return ErrOTPUnavailable
	default:
		return ErrOTPUnavailable
	}
}

func mapOTPStoreError(err error) error {
	switch {
	case errors.Is(err, stores.ErrChallengeNotFound):
		return ErrOTPNotFound
	case errors.Is(err, stores.ErrChallengeExpired):
		return ErrOTPExpired
	case errors.Is(err, stores.ErrChallengeCodeMismatch):
		return ErrOTPMismatch
	case errors.Is(err, stores.ErrChallengeAttemptsExceeded):
		return ErrOTPAttemptsExceeded
	default:
		return ErrOTPUnavailable
	}
}
