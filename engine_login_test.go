package authcore

import (
	"context"
	"errors"
	"testing"
)

func TestLoginHappyPath(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})
	account := seedAccount(ap, t, engine.passwordHash, "alice@example.com", "5551234567", "Abc123!@x", RoleUser, ApprovalNotRequired)

	res, err := engine.Login(ctx, "alice@example.com", "Abc123!@x")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.AccountID != account.AccountID {
		t.Fatalf("expected account %q, got %q", account.AccountID, res.AccountID)
	}
	if res.Role != RoleUser {
		t.Fatalf("expected user role, got %v", res.Role)
	}

	claims, err := engine.ParseAccessToken(res.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken failed: %v", err)
	}
	if claims.UID != account.AccountID {
		t.Fatalf("expected uid %q in claims, got %q", account.AccountID, claims.UID)
	}
	if claims.Role != string(RoleUser) {
		t.Fatalf("expected role claim %q, got %q", RoleUser, claims.Role)
	}
}

func TestLoginWrongPasswordAndUnknownEmailCoalesce(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})
	seedAccount(ap, t, engine.passwordHash, "alice@example.com", "5551234567", "Abc123!@x", RoleUser, ApprovalNotRequired)

	if _, err := engine.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if _, err := engine.Login(ctx, "ghost@example.com", "Abc123!@x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestLoginNormalizesEmail(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})
	seedAccount(ap, t, engine.passwordHash, "alice@example.com", "5551234567", "Abc123!@x", RoleUser, ApprovalNotRequired)

	if _, err := engine.Login(context.Background(), "  Alice@Example.COM ", "Abc123!@x"); err != nil {
		t.Fatalf("expected case-insensitive login, got %v", err)
	}
}

func TestLoginApprovalGate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})

	seedAccount(ap, t, engine.passwordHash, "pending@example.com", "5551111111", "Abc123!@x", RoleAdmin, ApprovalPending)
	seedAccount(ap, t, engine.passwordHash, "rejected@example.com", "5552222222", "Abc123!@x", RoleAdmin, ApprovalRejected)
	granted := seedAccount(ap, t, engine.passwordHash, "granted@example.com", "5553333333", "Abc123!@x", RoleAdmin, ApprovalGranted)

	if _, err := engine.Login(ctx, "pending@example.com", "Abc123!@x"); !errors.Is(err, ErrApprovalPending) {
		t.Fatalf("expected ErrApprovalPending, got %v", err)
	}
	if _, err := engine.Login(ctx, "rejected@example.com", "Abc123!@x"); !errors.Is(err, ErrApprovalRejected) {
		t.Fatalf("expected ErrApprovalRejected, got %v", err)
	}

	res, err := engine.Login(ctx, "granted@example.com", "Abc123!@x")
	if err != nil {
		t.Fatalf("expected granted admin to log in, got %v", err)
	}
	if res.AccountID != granted.AccountID {
		t.Fatalf("expected account %q, got %q", granted.AccountID, res.AccountID)
	}
}

func TestLoginApprovalGateRequiresCorrectPassword(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})
	seedAccount(ap, t, engine.passwordHash, "pending@example.com", "5551111111", "Abc123!@x", RoleAdmin, ApprovalPending)

	// The approval state must not leak to callers who fail authentication.
	if _, err := engine.Login(context.Background(), "pending@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginRateLimited(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})
	seedAccount(ap, t, engine.passwordHash, "alice@example.com", "5551234567", "Abc123!@x", RoleUser, ApprovalNotRequired)

	for i := 0; i < 5; i++ {
		if _, err := engine.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}
	if _, err := engine.Login(ctx, "alice@example.com", "Abc123!@x"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
}

func TestSetAdminApproval(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})

	root := seedAccount(ap, t, engine.passwordHash, "root@example.com", "5550000001", "Abc123!@x", RoleRootAdmin, ApprovalNotRequired)
	admin := seedAccount(ap, t, engine.passwordHash, "admin@example.com", "5550000002", "Abc123!@x", RoleAdmin, ApprovalPending)

	updated, err := engine.SetAdminApproval(ctx, root.AccountID, admin.AccountID, ApprovalGranted)
	if err != nil {
		t.Fatalf("SetAdminApproval failed: %v", err)
	}
	if updated.Approval != ApprovalGranted {
		t.Fatalf("expected granted approval, got %v", updated.Approval)
	}

	if _, err := engine.Login(ctx, "admin@example.com", "Abc123!@x"); err != nil {
		t.Fatalf("expected granted admin to log in, got %v", err)
	}
}

func TestSetAdminApprovalRequiresRootAdmin(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})

	user := seedAccount(ap, t, engine.passwordHash, "user@example.com", "5550000001", "Abc123!@x", RoleUser, ApprovalNotRequired)
	otherAdmin := seedAccount(ap, t, engine.passwordHash, "other@example.com", "5550000002", "Abc123!@x", RoleAdmin, ApprovalGranted)
	target := seedAccount(ap, t, engine.passwordHash, "admin@example.com", "5550000003", "Abc123!@x", RoleAdmin, ApprovalPending)

	if _, err := engine.SetAdminApproval(ctx, user.AccountID, target.AccountID, ApprovalGranted); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for user caller, got %v", err)
	}
	// Even a granted admin cannot approve peers.
	if _, err := engine.SetAdminApproval(ctx, otherAdmin.AccountID, target.AccountID, ApprovalGranted); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for admin caller, got %v", err)
	}
	if _, err := engine.SetAdminApproval(ctx, "missing", target.AccountID, ApprovalGranted); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown caller, got %v", err)
	}
}

func TestSetAdminApprovalTargetMustBeAdmin(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	ap := &mockAccountProvider{}
	engine := newTestEngine(t, rdb, ap, &captureSender{})

	root := seedAccount(ap, t, engine.passwordHash, "root@example.com", "5550000001", "Abc123!@x", RoleRootAdmin, ApprovalNotRequired)
	user := seedAccount(ap, t, engine.passwordHash, "user@example.com", "5550000002", "Abc123!@x", RoleUser, ApprovalNotRequired)

	if _, err := engine.SetAdminApproval(ctx, root.AccountID, user.AccountID, ApprovalGranted); !errors.Is(err, ErrAccountRoleInvalid) {
		t.Fatalf("expected ErrAccountRoleInvalid for non-admin target, got %v", err)
	}
	if _, err := engine.SetAdminApproval(ctx, root.AccountID, "missing", ApprovalGranted); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := engine.SetAdminApproval(ctx, root.AccountID, user.AccountID, ApprovalPending); !errors.Is(err, ErrAccountRoleInvalid) {
		t.Fatalf("expected ErrAccountRoleInvalid for non-decision status, got %v", err)
	}
}
