package authcore

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/propspace/authcore/internal"
	"github.com/propspace/authcore/internal/limiters"
	"github.com/propspace/authcore/internal/stores"
)

// VerifyOwnership checks that email and mobile belong to the same account.
// The check is all-or-nothing: an unknown email and a wrong mobile for a
// known email both fail with ErrVerificationFailed after an equalizing
// delay, so neither response reveals which credential was wrong.
func (e *Engine) VerifyOwnership(ctx context.Context, email, mobile string) (string, error) {
	if e == nil || e.accounts == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return "", ErrInvalidEmail
	}
	if !isValidMobile(mobile) {
		return "", ErrInvalidMobile
	}

	account, err := e.accounts.GetAccountByEmailAndMobile(ctx, email, mobile)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			e.sleepEnumerationDelay(ctx)
			e.metricInc(MetricOwnershipFailure)
			e.emitAudit(ctx, auditEventOwnershipFailure, false, "", email, ErrVerificationFailed, nil)
			return "", ErrVerificationFailed
		}
		return "", ErrAccountUnavailable
	}

	e.metricInc(MetricOwnershipVerified)
	e.emitAudit(ctx, auditEventOwnershipVerified, true, account.AccountID, email, nil, nil)
	return account.AccountID, nil
}

// SubmitVerification is the first reset step: it proves ownership of the
// email+mobile pair, consumes a forgot-password OTP issued for that email,
// and opens a recovery session. The returned token is the only capability
// that permits the second step, and it is single use.
//
// Every verification failure, whether the pair or the code was wrong, reports
// ErrVerificationFailed; only rate limits and backend outages pass through.
func (e *Engine) SubmitVerification(ctx context.Context, email, mobile, otp string) (string, error) {
	if e == nil || e.accounts == nil || e.otpStore == nil || e.resetStore == nil {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return "", ErrInvalidEmail
	}
	if !isValidMobile(mobile) {
		return "", ErrInvalidMobile
	}

	if err := e.otpLimiter.CheckVerify(ctx, clientIPFromContext(ctx)); err != nil {
		mapped := mapOTPLimiterError(err, 0)
		if errors.Is(mapped, ErrOTPRateLimited) {
			e.emitRateLimit(ctx, "recovery_verify", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		}
		return "", mapped
	}

	account, err := e.accounts.GetAccountByEmailAndMobile(ctx, email, mobile)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			e.sleepEnumerationDelay(ctx)
			e.metricInc(MetricOwnershipFailure)
			e.emitAudit(ctx, auditEventOwnershipFailure, false, "", email, ErrVerificationFailed, nil)
			return "", ErrVerificationFailed
		}
		return "", ErrAccountUnavailable
	}

	record, err := e.consumeOTPForPurpose(ctx, email, otp, PurposeForgotPassword)
	if err != nil {
		e.metricInc(MetricOTPVerifyFailure)
		e.emitAudit(ctx, auditEventOTPVerifyFailure, false, account.AccountID, email, err, func() map[string]string {
			return map[string]string{
				"purpose": PurposeForgotPassword.String(),
			}
		})
		if errors.Is(err, ErrOTPUnavailable) {
			return "", err
		}
		// A bad, expired, or never-issued code must be indistinguishable from
		// a wrong email+mobile pair; the audit trail keeps the real reason.
		return "", ErrVerificationFailed
	}
	// The challenge was written for this account at issue time; a mismatch
	// here means the account changed identifiers mid-flow.
	if record.AccountID != "" && record.AccountID != account.AccountID {
		return "", ErrVerificationFailed
	}

	tid, err := internal.NewTokenID()
	if err != nil {
		return "", err
	}
	secret, err := internal.NewResetSecret()
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := &stores.ResetSessionRecord{
		AccountID:  account.AccountID,
		SecretHash: internal.HashResetSecret(secret),
		ExpiresAt:  now.Add(e.config.Recovery.SessionTTL).Unix(),
		Attempts:   0,
	}

	if err := e.resetStore.Save(ctx, tid.String(), session, e.config.Recovery.SessionTTL); err != nil {
		return "", ErrResetUnavailable
	}

	token, err := internal.EncodeResetToken(tid.String(), secret)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricRecoverySessionOpened)
	e.emitAudit(ctx, auditEventRecoverySessionOpen, true, account.AccountID, email, nil, nil)
	return token, nil
}

// SubmitNewPassword is the second reset step. The token must come from a
// live recovery session; passwords failing the confirmation match or the
// strength policy are rejected before the session is consumed, so the
// caller can retry with the same token. A consumed or expired session
// reports ErrResetStateInvalid.
func (e *Engine) SubmitNewPassword(ctx context.Context, resetToken, newPassword, confirmPassword string) error {
	if e == nil || e.accounts == nil || e.resetStore == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	if err := e.recoveryLimiter.Check(ctx, clientIPFromContext(ctx)); err != nil {
		mapped := mapRecoveryLimiterError(err)
		if errors.Is(mapped, ErrResetRateLimited) {
			e.emitRateLimit(ctx, "recovery_reset", nil)
		}
		return mapped
	}

	sessionID, secret, err := internal.DecodeResetToken(resetToken)
	if err != nil {
		e.metricInc(MetricRecoveryResetFailure)
		e.emitAudit(ctx, auditEventRecoveryResetFailure, false, "", "", ErrResetStateInvalid, func() map[string]string {
			return map[string]string{
				"reason": "malformed_token",
			}
		})
		return ErrResetStateInvalid
	}

	if newPassword != confirmPassword {
		e.metricInc(MetricRecoveryResetFailure)
		e.emitAudit(ctx, auditEventRecoveryResetFailure, false, "", "", ErrPasswordMismatch, nil)
		return ErrPasswordMismatch
	}
	if violations := checkPasswordPolicy(e.config.PasswordPolicy, newPassword); len(violations) > 0 {
		e.metricInc(MetricWeakPasswordRejected)
		e.emitAudit(ctx, auditEventRecoveryResetFailure, false, "", "", ErrWeakPassword, nil)
		return &WeakPasswordError{Violations: violations}
	}

	session, err := e.resetStore.Consume(ctx, sessionID, internal.HashResetSecret(secret), e.config.Recovery.MaxAttempts)
	if err != nil {
		mapped := mapResetStoreError(err)
		e.metricInc(MetricRecoveryResetFailure)
		if errors.Is(err, stores.ErrSessionNotFound) {
			// Indistinguishable from a replay of an already-consumed token.
			e.metricInc(MetricRecoveryReplay)
			e.emitAudit(ctx, auditEventRecoveryReplay, false, "", "", mapped, nil)
		} else {
			e.emitAudit(ctx, auditEventRecoveryResetFailure, false, "", "", mapped, nil)
		}
		return mapped
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.accounts.UpdatePasswordHash(ctx, session.AccountID, newHash); err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return ErrAccountNotFound
		}
		return ErrAccountUnavailable
	}

	e.metricInc(MetricRecoveryResetSuccess)
	e.emitAudit(ctx, auditEventRecoveryResetSuccess, true, session.AccountID, "", nil, nil)
	return nil
}

// AbandonReset discards an open recovery session without completing it.
// The full token is required: a caller holding only the session id cannot
// abandon someone else's session. Abandoning a token whose session already
// ended is not an error.
func (e *Engine) AbandonReset(ctx context.Context, resetToken string) error {
	if e == nil || e.resetStore == nil {
		return ErrEngineNotReady
	}

	sessionID, secret, err := internal.DecodeResetToken(resetToken)
	if err != nil {
		return ErrResetStateInvalid
	}

	session, err := e.resetStore.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, stores.ErrSessionNotFound) {
			return nil
		}
		return ErrResetUnavailable
	}

	providedHash := internal.HashResetSecret(secret)
	if subtle.ConstantTimeCompare(session.SecretHash[:], providedHash[:]) != 1 {
		return ErrResetStateInvalid
	}

	if err := e.resetStore.Delete(ctx, sessionID); err != nil {
		return ErrResetUnavailable
	}

	e.metricInc(MetricRecoveryAbandoned)
	e.emitAudit(ctx, auditEventRecoveryAbandoned, true, "", "", nil, nil)
	return nil
}

func mapRecoveryLimiterError(err error) error {
	switch {
	case errors.Is(err, limiters.ErrRecoveryRateLimited):
		return ErrResetRateLimited
	case errors.Is(err, limiters.ErrRecoveryRedisUnavailable):
		return ErrResetUnavailable
	default:
		return ErrResetUnavailable
	}
}

func mapResetStoreError(err error) error {
	switch {
	case errors.Is(err, stores.ErrSessionNotFound):
		return ErrResetStateInvalid
	case errors.Is(err, stores.ErrSessionSecretMismatch):
		return ErrResetStateInvalid
	case errors.Is(err, stores.ErrSessionAttemptsExceeded):
		return ErrResetAttemptsExceeded
	default:
		return ErrResetUnavailable
	}
}
