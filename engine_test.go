package authcore

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/propspace/authcore/internal/limiters"
	"github.com/propspace/authcore/internal/stores"
	"github.com/propspace/authcore/jwt"
	"github.com/propspace/authcore/password"
)

type mockAccountProvider struct {
	accounts map[string]AccountRecord
	byEmail  map[string]string
	mu       sync.Mutex

	createErr error
	updateErr error
	lookupErr error

	getByEmailCalls       int
	getByEmailMobileCalls int
	getByIDCalls          int
	createCalls           int
	updatePasswordCalls   int
	updateApprovalCalls   int
}

func (m *mockAccountProvider) GetAccountByEmail(_ context.Context, email string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailCalls++

	if m.lookupErr != nil {
		return AccountRecord{}, m.lookupErr
	}

	id, ok := m.byEmail[email]
	if !ok {
		return AccountRecord{}, ErrProviderNotFound
	}
	return m.accounts[id], nil
}

func (m *mockAccountProvider) GetAccountByEmailAndMobile(_ context.Context, email, mobile string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailMobileCalls++

	if m.lookupErr != nil {
		return AccountRecord{}, m.lookupErr
	}

	id, ok := m.byEmail[email]
	if !ok {
		return AccountRecord{}, ErrProviderNotFound
	}
	account := m.accounts[id]
	if account.Mobile != mobile {
		return AccountRecord{}, ErrProviderNotFound
	}
	return account, nil
}

func (m *mockAccountProvider) GetAccountByID(_ context.Context, accountID string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++

	account, ok := m.accounts[accountID]
	if !ok {
		return AccountRecord{}, ErrProviderNotFound
	}
	return account, nil
}

func (m *mockAccountProvider) CreateAccount(_ context.Context, input CreateAccountInput) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if m.createErr != nil {
		return AccountRecord{}, m.createErr
	}

	if m.accounts == nil {
		m.accounts = make(map[string]AccountRecord)
	}
	if m.byEmail == nil {
		m.byEmail = make(map[string]string)
	}

	for _, existing := range m.accounts {
		if existing.Email == input.Email || existing.Mobile == input.Mobile {
			return AccountRecord{}, ErrProviderDuplicateIdentifier
		}
	}

	accountID := fmt.Sprintf("a%d", len(m.accounts)+1)
	account := AccountRecord{
		AccountID:    accountID,
		Name:         input.Name,
		Email:        input.Email,
		Mobile:       input.Mobile,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Approval:     input.Approval,
	}

	m.accounts[accountID] = account
	m.byEmail[input.Email] = accountID
	return account, nil
}

func (m *mockAccountProvider) UpdatePasswordHash(_ context.Context, accountID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++

	if m.updateErr != nil {
		return m.updateErr
	}

	account, ok := m.accounts[accountID]
	if !ok {
		return ErrProviderNotFound
	}
	account.PasswordHash = newHash
	m.accounts[accountID] = account
	return nil
}

func (m *mockAccountProvider) UpdateApprovalStatus(_ context.Context, accountID string, status ApprovalStatus) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateApprovalCalls++

	account, ok := m.accounts[accountID]
	if !ok {
		return AccountRecord{}, ErrProviderNotFound
	}
	account.Approval = status
	m.accounts[accountID] = account
	return account, nil
}

type captureSender struct {
	mu      sync.Mutex
	sendErr error

	calls   int
	email   string
	code    string
	purpose OTPPurpose
}

func (s *captureSender) SendOTP(_ context.Context, email, code string, purpose OTPPurpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.sendErr != nil {
		return s.sendErr
	}
	s.email = email
	s.code = code
	s.purpose = purpose
	return nil
}

func (s *captureSender) lastCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestHasher(t *testing.T) *password.Argon2 {
	t.Helper()

	h, err := password.NewArgon2(password.Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	return h
}

func newTestJWTManager(t *testing.T) *jwt.Manager {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey failed: %v", err)
	}

	m, err := jwt.NewManager(jwt.Config{
		AccessTTL:     15 * time.Minute,
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authcore-test",
	})
	if err != nil {
		t.Fatalf("jwt.NewManager failed: %v", err)
	}
	return m
}

func newTestEngine(t *testing.T, rdb *redis.Client, ap AccountProvider, sender OTPSender) *Engine {
	t.Helper()

	cfg := defaultConfig()
	cfg.OTP.EnableIPThrottle = false
	cfg.Recovery.EnableIPThrottle = false
	cfg.Login.EnableIPThrottle = false

	return &Engine{
		config:     cfg,
		accounts:   ap,
		sender:     sender,
		otpStore:   stores.NewOTPStore(rdb, cfg.OTP.RedisPrefix),
		resetStore: stores.NewResetSessionStore(rdb, cfg.Recovery.RedisPrefix),
		otpLimiter: limiters.NewOTPLimiter(rdb, limiters.OTPConfig{
			EnableIPThrottle: false,
		}),
		recoveryLimiter: limiters.NewRecoveryLimiter(rdb, limiters.RecoveryConfig{
			EnableIPThrottle: false,
		}),
		loginLimiter: limiters.NewLoginLimiter(rdb, limiters.LoginConfig{
			MaxAttempts:      cfg.Login.MaxAttempts,
			Cooldown:         cfg.Login.Cooldown,
			EnableIPThrottle: false,
		}),
		passwordHash: newTestHasher(t),
		jwtManager:   newTestJWTManager(t),
	}
}

func seedAccount(ap *mockAccountProvider, t *testing.T, hasher *password.Argon2, email, mobile, plaintext string, role Role, approval ApprovalStatus) AccountRecord {
	t.Helper()

	hash, err := hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	account, err := ap.CreateAccount(context.Background(), CreateAccountInput{
		Name:         "Test Account",
		Email:        email,
		Mobile:       mobile,
		PasswordHash: hash,
		Role:         role,
		Approval:     approval,
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return account
}

var errProviderDown = errors.New("provider down")
