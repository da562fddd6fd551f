package authcore

import (
	"context"
	"errors"
)

// CompleteSignup creates an account after its email has been verified with a
// signup OTP. All input validation runs before the code is consumed, so a
// request rejected for a weak password or a bad mobile number does not burn
// the challenge. Admin signups start in ApprovalPending when the engine is
// configured to require root-admin review.
func (e *Engine) CompleteSignup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	if e == nil || e.accounts == nil || e.otpStore == nil || e.passwordHash == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if !isValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !isValidMobile(req.Mobile) {
		return nil, ErrInvalidMobile
	}

	role := req.Role
	if role == "" {
		role = e.config.Signup.DefaultRole
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, ErrAccountRoleInvalid
	}

	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	if violations := checkPasswordPolicy(e.config.PasswordPolicy, req.Password); len(violations) > 0 {
		e.metricInc(MetricWeakPasswordRejected)
		return nil, &WeakPasswordError{Violations: violations}
	}

	if _, err := e.consumeOTPForPurpose(ctx, email, req.OTP, PurposeSignup); err != nil {
		e.metricInc(MetricSignupFailure)
		e.emitAudit(ctx, auditEventSignupFailure, false, "", email, err, nil)
		return nil, err
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	approval := ApprovalNotRequired
	if role == RoleAdmin && e.config.Signup.AdminApprovalRequired {
		approval = ApprovalPending
	}

	account, err := e.accounts.CreateAccount(ctx, CreateAccountInput{
		Name:         req.Name,
		Email:        email,
		Mobile:       req.Mobile,
		PasswordHash: hash,
		Role:         role,
		Approval:     approval,
	})
	if err != nil {
		if errors.Is(err, ErrProviderDuplicateIdentifier) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignupDuplicate, false, "", email, ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		e.metricInc(MetricSignupFailure)
		e.emitAudit(ctx, auditEventSignupFailure, false, "", email, err, nil)
		return nil, ErrAccountUnavailable
	}

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, true, account.AccountID, email, nil, func() map[string]string {
		return map[string]string{
			"role": string(account.Role),
		}
	})

	return &SignupResult{
		AccountID: account.AccountID,
		Role:      account.Role,
		Approval:  account.Approval,
	}, nil
}
