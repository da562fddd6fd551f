package authcore

import (
	"context"
	"errors"

	"github.com/propspace/authcore/internal/limiters"
)

// fakeHash is a real argon2id digest of a random throwaway password. Login
// verifies against it when the email is unknown so the response time does
// not reveal whether the account exists.
const fakeHash = "$argon2id$v=19$m=65536,t=3,p=2$YXV0aGNvcmVmYWtlc2FsdA$momW8M1sC9PywT2EO2YK8TSmKCMAOYI9MgJ2wmgcJnM"

// Login verifies credentials and issues a short-lived access token. Admin
// accounts additionally pass through the approval gate: pending and rejected
// admins authenticate correctly but are refused a token.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.accounts == nil || e.passwordHash == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return nil, ErrInvalidCredentials
	}

	if err := e.loginLimiter.Check(ctx, email, clientIPFromContext(ctx)); err != nil {
		mapped := mapLoginLimiterError(err)
		if errors.Is(mapped, ErrLoginRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", func() map[string]string {
				return map[string]string{
					"email": email,
				}
			})
		}
		return nil, mapped
	}

	account, err := e.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			// Burn the same amount of work as a real verification.
			_, _ = e.passwordHash.Verify(password, fakeHash)
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", email, ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, ErrAccountUnavailable
	}

	ok, err := e.passwordHash.Verify(password, account.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, email, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	if account.Role == RoleAdmin {
		switch account.Approval {
		case ApprovalPending:
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, email, ErrApprovalPending, nil)
			return nil, ErrApprovalPending
		case ApprovalRejected:
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, email, ErrApprovalRejected, nil)
			return nil, ErrApprovalRejected
		}
	}

	token, err := e.jwtManager.CreateAccess(account.AccountID, string(account.Role))
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.AccountID, email, nil, nil)

	return &LoginResult{
		AccessToken: token,
		AccountID:   account.AccountID,
		Role:        account.Role,
	}, nil
}

// SetAdminApproval grants or rejects a pending admin account. Only a root
// admin may call it; the caller is re-resolved from storage rather than
// trusted from a token claim.
func (e *Engine) SetAdminApproval(ctx context.Context, callerAccountID, targetAccountID string, status ApprovalStatus) (*AccountRecord, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if status != ApprovalGranted && status != ApprovalRejected {
		return nil, ErrAccountRoleInvalid
	}

	caller, err := e.accounts.GetAccountByID(ctx, callerAccountID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, ErrAccountUnavailable
	}
	if caller.Role != RoleRootAdmin {
		e.emitAudit(ctx, auditEventApprovalChanged, false, callerAccountID, "", ErrUnauthorized, nil)
		return nil, ErrUnauthorized
	}

	target, err := e.accounts.GetAccountByID(ctx, targetAccountID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, ErrAccountUnavailable
	}
	if target.Role != RoleAdmin {
		return nil, ErrAccountRoleInvalid
	}

	updated, err := e.accounts.UpdateApprovalStatus(ctx, target.AccountID, status)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, ErrAccountUnavailable
	}

	e.metricInc(MetricApprovalChanged)
	e.emitAudit(ctx, auditEventApprovalChanged, true, caller.AccountID, target.Email, nil, func() map[string]string {
		granted := "rejected"
		if status == ApprovalGranted {
			granted = "granted"
		}
		return map[string]string{
			"target":   target.AccountID,
			"decision": granted,
		}
	})

	return &updated, nil
}

func mapLoginLimiterError(err error) error {
	switch {
	case errors.Is(err, limiters.ErrLoginRateLimited):
		return ErrLoginRateLimited
	case errors.Is(err, limiters.ErrLoginRedisUnavailable):
		return ErrAccountUnavailable
	default:
		return ErrAccountUnavailable
	}
}
