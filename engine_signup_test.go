package authcore

import (
	"context"
	"errors"
	"testing"
)

func signupRequest(code string) SignupRequest {
	return SignupRequest{
		Name:            "Alice",
		Email:           "alice@example.com",
		Mobile:          "5551234567",
		Password:        "Abc123!@x",
		ConfirmPassword: "Abc123!@x",
		Role:            RoleUser,
		OTP:             code,
	}
}

func TestCompleteSignupHappyPath(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, ap, sender)

	if err := engine.IssueOTP(ctx, "alice@example.com", PurposeSignup); err != nil {
		t.Fatalf("IssueOTP failed: %v", err)
	}

	res, err := engine.CompleteSignup(ctx, signupRequest(sender.lastCode()))
	if err != nil {
		t.Fatalf("CompleteSignup failed: %v", err)
	}
	if res.Role != RoleUser {
		t.Fatalf("expected user role, got %v", res.Role)
	}
	if res.Approval != ApprovalNotRequired {
		t.Fatalf("expected no approval gate for users, got %v", res.Approval)
	}
	if ap.createCalls != 1 {
		t.Fatalf("expected one create call, got %d", ap.createCalls)
	}

	account, err := ap.GetAccountByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetAccountByEmail failed: %v", err)
	}
	if ok, _ := engine.passwordHash.Verify("Abc123!@x", account.PasswordHash); !ok {
		t.Fatal("expected stored hash to verify the signup password")
	}
}

func TestCompleteSignupAdminStartsPending(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, ap, sender)

	if err := engine.IssueOTP(ctx, "admin@example.com", PurposeSignup); err != nil {
		t.Fatalf("IssueOTP failed: %v", err)
	}

	req := signupRequest(sender.lastCode())
	req.Email = "admin@example.com"
	req.Role = RoleAdmin

	res, err := engine.CompleteSignup(ctx, req)
	if err != nil {
		t.Fatalf("CompleteSignup failed: %v", err)
	}
	if res.Approval != ApprovalPending {
		t.Fatalf("expected pending approval for admin signup, got %v", res.Approval)
	}
}

func TestCompleteSignupRejectsRootAdminRole(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &mockAccountProvider{}, &captureSender{})

	req := signupRequest("123456")
	req.Role = RoleRootAdmin

	if _, err := engine.CompleteSignup(context.Background(), req); !errors.Is(err, ErrAccountRoleInvalid) {
		t.Fatalf("expected ErrAccountRoleInvalid, got %v", err)
	}
}

func TestCompleteSignupValidationRunsBeforeConsume(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, ap, sender)

	if err := engine.IssueOTP(ctx, "alice@example.com", PurposeSignup); err != nil {
		t.Fatalf("IssueOTP failed: %v", err)
	}
	code := sender.lastCode()

	mismatch := signupRequest(code)
	mismatch.ConfirmPassword = "Different1!"
	if _, err := engine.CompleteSignup(ctx, mismatch); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}

	weak := signupRequest(code)
	weak.Password = "abc12345"
	weak.ConfirmPassword = "abc12345"
	var weakErr *WeakPasswordError
	if _, err := engine.CompleteSignup(ctx, weak); !errors.As(err, &weakErr) {
		t.Fatalf("expected WeakPasswordError, got %v", err)
	}

	badMobile := signupRequest(code)
	badMobile.Mobile = "12345"
	if _, err := engine.CompleteSignup(ctx, badMobile); !errors.Is(err, ErrInvalidMobile) {
		t.Fatalf("expected ErrInvalidMobile, got %v", err)
	}

	// None of the rejected requests consumed the challenge.
	if _, err := engine.CompleteSignup(ctx, signupRequest(code)); err != nil {
		t.Fatalf("expected signup to succeed with preserved challenge, got %v", err)
	}
}

func TestCompleteSignupWrongOTP(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, &mockAccountProvider{}, sender)

	if err := engine.IssueOTP(ctx, "alice@example.com", PurposeSignup); err != nil {
		t.Fatalf("IssueOTP failed: %v", err)
	}
	code := sender.lastCode()

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	if _, err := engine.CompleteSignup(ctx, signupRequest(wrong)); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("expected ErrOTPMismatch, got %v", err)
	}
}

func TestCompleteSignupDuplicateRace(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, ap, sender)

	// An account created between OTP issue and signup completion surfaces as
	// a duplicate from the provider.
	if err := engine.IssueOTP(ctx, "alice@example.com", PurposeSignup); err != nil {
		t.Fatalf("IssueOTP failed: %v", err)
	}
	code := sender.lastCode()
	seedAccount(ap, t, engine.passwordHash, "alice@example.com", "5551234567", "Abc123!@x", RoleUser, ApprovalNotRequired)

	if _, err := engine.CompleteSignup(ctx, signupRequest(code)); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestCompleteSignupProviderDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{createErr: errProviderDown}
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, ap, sender)

	if err := engine.IssueOTP(ctx, "alice@example.com", PurposeSignup); err != nil {
		t.Fatalf("IssueOTP failed: %v", err)
	}

	// Provider failures are coalesced so backend details never reach callers.
	if _, err := engine.CompleteSignup(ctx, signupRequest(sender.lastCode())); !errors.Is(err, ErrAccountUnavailable) {
		t.Fatalf("expected ErrAccountUnavailable, got %v", err)
	}
}

func TestCompleteSignupDefaultsRole(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, ap, sender)

	if err := engine.IssueOTP(ctx, "alice@example.com", PurposeSignup); err != nil {
		t.Fatalf("IssueOTP failed: %v", err)
	}

	req := signupRequest(sender.lastCode())
	req.Role = ""

	res, err := engine.CompleteSignup(ctx, req)
	if err != nil {
		t.Fatalf("CompleteSignup failed: %v", err)
	}
	if res.Role != RoleUser {
		t.Fatalf("expected default user role, got %v", res.Role)
	}
}
