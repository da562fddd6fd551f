package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrInvalidEmail is an exported constant or variable used by the authentication engine.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidMobile is an exported constant or variable used by the authentication engine.
	ErrInvalidMobile = errors.New("invalid mobile number")
	// ErrInvalidPurpose is an exported constant or variable used by the authentication engine.
	ErrInvalidPurpose = errors.New("invalid otp purpose")

	// ErrOTPNotFound is an exported constant or variable used by the authentication engine.
	ErrOTPNotFound = errors.New("otp challenge not found")
	// ErrOTPExpired is an exported constant or variable used by the authentication engine.
	ErrOTPExpired = errors.New("otp challenge expired")
	// ErrOTPMismatch is an exported constant or variable used by the authentication engine.
	ErrOTPMismatch = errors.New("otp code mismatch")
	// ErrOTPAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
	// ErrOTPRateLimited is an exported constant or variable used by the authentication engine.
	ErrOTPRateLimited = errors.New("otp rate limited")
	// ErrOTPUnavailable is an exported constant or variable used by the authentication engine.
	ErrOTPUnavailable = errors.New("otp backend unavailable")
	// ErrDeliveryFailed is an exported constant or variable used by the authentication engine.
	ErrDeliveryFailed = errors.New("otp delivery failed")

	// ErrAccountNotFound is an exported constant or variable used by the authentication engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is an exported constant or variable used by the authentication engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountRoleInvalid is an exported constant or variable used by the authentication engine.
	ErrAccountRoleInvalid = errors.New("account role invalid")
	// ErrAccountUnavailable is an exported constant or variable used by the authentication engine.
	ErrAccountUnavailable = errors.New("account backend unavailable")

	// ErrVerificationFailed is an exported constant or variable used by the authentication engine.
	ErrVerificationFailed = errors.New("identity verification failed")

	// ErrResetStateInvalid is an exported constant or variable used by the authentication engine.
	ErrResetStateInvalid = errors.New("reset flow state invalid")
	// ErrResetAttemptsExceeded is an exported constant or variable used by the authentication engine.
	ErrResetAttemptsExceeded = errors.New("reset attempts exceeded")
	// ErrResetRateLimited is an exported constant or variable used by the authentication engine.
	ErrResetRateLimited = errors.New("reset rate limited")
	// ErrResetUnavailable is an exported constant or variable used by the authentication engine.
	ErrResetUnavailable = errors.New("reset backend unavailable")

	// ErrPasswordMismatch is an exported constant or variable used by the authentication engine.
	ErrPasswordMismatch = errors.New("password confirmation mismatch")
	// ErrWeakPassword is an exported constant or variable used by the authentication engine.
	ErrWeakPassword = errors.New("password too weak")

	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrApprovalPending is an exported constant or variable used by the authentication engine.
	ErrApprovalPending = errors.New("admin approval pending")
	// ErrApprovalRejected is an exported constant or variable used by the authentication engine.
	ErrApprovalRejected = errors.New("admin approval rejected")
	// ErrUnauthorized is an exported constant or variable used by the authentication engine.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProviderNotFound is an exported constant or variable used by the authentication engine.
	ErrProviderNotFound = errors.New("provider: account not found")
	// ErrProviderDuplicateIdentifier is an exported constant or variable used by the authentication engine.
	ErrProviderDuplicateIdentifier = errors.New("provider: duplicate identifier")
)

// RetryAfterError wraps a rate-limit sentinel with a machine-readable
// cooldown hint so callers can drive countdown UIs. errors.Is against the
// wrapped sentinel still matches.
type RetryAfterError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v: retry after %s", e.Err, e.RetryAfter)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// RetryAfterHint extracts the cooldown hint from err, if one was attached.
func RetryAfterHint(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) {
		return ra.RetryAfter, true
	}
	return 0, false
}

// PasswordRule identifies a single password policy requirement.
type PasswordRule string

const (
	// RuleMinLength is an exported constant or variable used by the authentication engine.
	RuleMinLength PasswordRule = "min_length"
	// RuleUppercase is an exported constant or variable used by the authentication engine.
	RuleUppercase PasswordRule = "uppercase"
	// RuleLowercase is an exported constant or variable used by the authentication engine.
	RuleLowercase PasswordRule = "lowercase"
	// RuleDigit is an exported constant or variable used by the authentication engine.
	RuleDigit PasswordRule = "digit"
	// RuleSymbol is an exported constant or variable used by the authentication engine.
	RuleSymbol PasswordRule = "symbol"
)

// WeakPasswordError reports every policy rule a candidate password missed,
// not just the first. errors.Is(err, ErrWeakPassword) matches.
type WeakPasswordError struct {
	Violations []PasswordRule
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password too weak: %d rule(s) unmet", len(e.Violations))
}

func (e *WeakPasswordError) Unwrap() error {
	return ErrWeakPassword
}
