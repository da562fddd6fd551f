package authcore

import (
	"context"
	"errors"
)

// Role is the access tier assigned to an account at signup.
//
//	Docs: docs/roles.md
type Role string

const (
	// RoleUser is an exported constant or variable used by the authentication engine.
	RoleUser Role = "user"
	// RoleAdmin is an exported constant or variable used by the authentication engine.
	RoleAdmin Role = "admin"
	// RoleRootAdmin is an exported constant or variable used by the authentication engine.
	RoleRootAdmin Role = "rootadmin"
)

// ParseRole validates a caller-supplied role string. RoleRootAdmin is never
// accepted from signup input; root accounts are provisioned out of band.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	default:
		return "", ErrAccountRoleInvalid
	}
}

// ApprovalStatus represents the admin-approval state of an account.
// Regular users are ApprovalNotRequired; admin accounts start as
// ApprovalPending until a root admin grants or rejects them.
type ApprovalStatus uint8

const (
	// ApprovalNotRequired is an exported constant or variable used by the authentication engine.
	ApprovalNotRequired ApprovalStatus = iota
	// ApprovalPending is an exported constant or variable used by the authentication engine.
	ApprovalPending
	// ApprovalGranted is an exported constant or variable used by the authentication engine.
	ApprovalGranted
	// ApprovalRejected is an exported constant or variable used by the authentication engine.
	ApprovalRejected
)

// OTPPurpose tags an OTP challenge with the flow that requested it. A code
// issued for one purpose never satisfies a verification for another.
type OTPPurpose uint8

const (
	// PurposeSignup is an exported constant or variable used by the authentication engine.
	PurposeSignup OTPPurpose = iota + 1
	// PurposeForgotPassword is an exported constant or variable used by the authentication engine.
	PurposeForgotPassword
)

func (p OTPPurpose) String() string {
	switch p {
	case PurposeSignup:
		return "signup"
	case PurposeForgotPassword:
		return "forgot_password"
	default:
		return "unknown"
	}
}

// ParseOTPPurpose maps a wire-level purpose string back to an OTPPurpose.
func ParseOTPPurpose(s string) (OTPPurpose, error) {
	switch s {
	case "signup":
		return PurposeSignup, nil
	case "forgot_password":
		return PurposeForgotPassword, nil
	default:
		return 0, errors.New("unknown otp purpose")
	}
}

// AccountProvider is the interface callers implement to integrate the engine
// with their account database. Lookups by identifier must treat email as
// case-insensitive; the engine normalizes before calling.
//
//	Docs: docs/engine.md
type AccountProvider interface {
	GetAccountByEmail(ctx context.Context, email string) (AccountRecord, error)
	GetAccountByEmailAndMobile(ctx context.Context, email, mobile string) (AccountRecord, error)
	GetAccountByID(ctx context.Context, accountID string) (AccountRecord, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (AccountRecord, error)
	UpdatePasswordHash(ctx context.Context, accountID, newHash string) error
	UpdateApprovalStatus(ctx context.Context, accountID string, status ApprovalStatus) (AccountRecord, error)
}

// AccountRecord is the full account record returned by [AccountProvider].
type AccountRecord struct {
	AccountID    string
	Name         string
	Email        string
	Mobile       string
	PasswordHash string
	Role         Role
	Approval     ApprovalStatus
}

// CreateAccountInput is the input for [AccountProvider.CreateAccount].
type CreateAccountInput struct {
	Name         string
	Email        string
	Mobile       string
	PasswordHash string
	Role         Role
	Approval     ApprovalStatus
}

// OTPSender delivers a generated one-time code to the account holder.
// Implementations must not log the code. See the notify package for
// queue-backed and development senders.
type OTPSender interface {
	SendOTP(ctx context.Context, email, code string, purpose OTPPurpose) error
}

// SignupRequest is the input for [Engine.CompleteSignup]. The OTP must have
// been issued for PurposeSignup against the same email.
type SignupRequest struct {
	Name            string
	Email           string
	Mobile          string
	Password        string
	ConfirmPassword string
	Role            Role
	OTP             string
}

// SignupResult is returned by [Engine.CompleteSignup].
type SignupResult struct {
	AccountID string
	Role      Role
	Approval  ApprovalStatus
}

// VerifyOTPResult is returned by [Engine.VerifyOTP]. Purpose reports which
// flow the consumed challenge belonged to; AccountID is empty for signup
// challenges where no account exists yet.
type VerifyOTPResult struct {
	Purpose   OTPPurpose
	AccountID string
}

// LoginResult is returned by [Engine.Login] on success.
type LoginResult struct {
	AccessToken string
	AccountID   string
	Role        Role
}
