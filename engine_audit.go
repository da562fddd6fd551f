package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventOTPIssued            = "otp_issued"
	auditEventOTPIssueFailure      = "otp_issue_failure"
	auditEventOTPIssueRateLimited  = "otp_issue_rate_limited"
	auditEventOTPVerifySuccess     = "otp_verify_success"
	auditEventOTPVerifyFailure     = "otp_verify_failure"
	auditEventOwnershipVerified    = "ownership_verified"
	auditEventOwnershipFailure     = "ownership_failure"
	auditEventRecoverySessionOpen  = "recovery_session_open"
	auditEventRecoveryResetSuccess = "recovery_reset_success"
	auditEventRecoveryResetFailure = "recovery_reset_failure"
	auditEventRecoveryReplay       = "recovery_replay"
	auditEventRecoveryAbandoned    = "recovery_abandoned"
	auditEventSignupSuccess        = "signup_success"
	auditEventSignupFailure        = "signup_failure"
	auditEventSignupDuplicate      = "signup_duplicate"
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginRateLimited     = "login_rate_limited"
	auditEventApprovalChanged      = "approval_changed"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrOTPNotFound        AuditErrorCode = "otp_not_found"
	auditErrOTPExpired         AuditErrorCode = "otp_expired"
	auditErrOTPMismatch        AuditErrorCode = "otp_mismatch"
	auditErrAttemptsExceeded   AuditErrorCode = "attempts_exceeded"
	auditErrDeliveryFailed     AuditErrorCode = "delivery_failed"
	auditErrVerification       AuditErrorCode = "verification_failed"
	auditErrInvalidState       AuditErrorCode = "invalid_state"
	auditErrPasswordMismatch   AuditErrorCode = "password_mismatch"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrApprovalPending    AuditErrorCode = "approval_pending"
	auditErrApprovalRejected   AuditErrorCode = "approval_rejected"
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, metadataBuilder func() map[string]string) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidMobile):
		return auditErrInvalidInput
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrOTPRateLimited),
		errors.Is(err, ErrResetRateLimited),
		errors.Is(err, ErrLoginRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrOTPNotFound):
		return auditErrOTPNotFound
	case errors.Is(err, ErrOTPExpired):
		return auditErrOTPExpired
	case errors.Is(err, ErrOTPMismatch):
		return auditErrOTPMismatch
	case errors.Is(err, ErrOTPAttemptsExceeded),
		errors.Is(err, ErrResetAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDeliveryFailed
	case errors.Is(err, ErrVerificationFailed):
		return auditErrVerification
	case errors.Is(err, ErrResetStateInvalid):
		return auditErrInvalidState
	case errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, ErrWeakPassword):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountExists),
		errors.Is(err, ErrProviderDuplicateIdentifier):
		return auditErrDuplicate
	case errors.Is(err, ErrApprovalPending):
		return auditErrApprovalPending
	case errors.Is(err, ErrApprovalRejected):
		return auditErrApprovalRejected
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrOTPUnavailable),
		errors.Is(err, ErrResetUnavailable),
		errors.Is(err, ErrAccountUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
