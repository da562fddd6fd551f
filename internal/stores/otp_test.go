package stores

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func otpTestRecord(code string, expiresAt int64) *OTPRecord {
	return &OTPRecord{
		AccountID: "a1",
		CodeHash:  sha256.Sum256([]byte(code)),
		ExpiresAt: expiresAt,
		Purpose:   1,
	}
}

func TestOTPConsumeSuccessDeletesChallenge(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewOTPStore(rdb, "ao")
	record := otpTestRecord("483920", time.Now().Add(5*time.Minute).Unix())

	if err := store.Save(ctx, "alice@example.com", record, 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Consume(ctx, "alice@example.com", sha256.Sum256([]byte("483920")), 5)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got.AccountID != "a1" || got.Purpose != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := store.Consume(ctx, "alice@example.com", sha256.Sum256([]byte("483920")), 5); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound on replay, got %v", err)
	}
}

func TestOTPConsumeMismatchBurnsAttempts(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewOTPStore(rdb, "ao")
	record := otpTestRecord("483920", time.Now().Add(5*time.Minute).Unix())

	if err := store.Save(ctx, "alice@example.com", record, 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	wrong := sha256.Sum256([]byte("000000"))
	for i := 0; i < 4; i++ {
		if _, err := store.Consume(ctx, "alice@example.com", wrong, 5); !errors.Is(err, ErrChallengeCodeMismatch) {
			t.Fatalf("attempt %d: expected ErrChallengeCodeMismatch, got %v", i+1, err)
		}
	}
	if _, err := store.Consume(ctx, "alice@example.com", wrong, 5); !errors.Is(err, ErrChallengeAttemptsExceeded) {
		t.Fatalf("expected ErrChallengeAttemptsExceeded, got %v", err)
	}

	// Exhaustion destroys the challenge; even the genuine code is dead.
	if _, err := store.Consume(ctx, "alice@example.com", sha256.Sum256([]byte("483920")), 5); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound after exhaustion, got %v", err)
	}
}

func TestOTPConsumeExpiredRecord(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewOTPStore(rdb, "ao")

	// Record timestamp already in the past while the Redis key is still
	// alive; the script must treat it as expired.
	record := otpTestRecord("483920", time.Now().Add(-time.Minute).Unix())
	if err := store.Save(ctx, "alice@example.com", record, 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Consume(ctx, "alice@example.com", sha256.Sum256([]byte("483920")), 5); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired, got %v", err)
	}
	if _, err := store.Consume(ctx, "alice@example.com", sha256.Sum256([]byte("483920")), 5); !errors.Is(err, ErrChallengeNotFound) {
		t.Fatalf("expected challenge deleted after expiry, got %v", err)
	}
}

func TestOTPSaveReplacesExistingChallenge(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewOTPStore(rdb, "ao")
	exp := time.Now().Add(5 * time.Minute).Unix()

	if err := store.Save(ctx, "alice@example.com", otpTestRecord("111111", exp), 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, "alice@example.com", otpTestRecord("222222", exp), 5*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Consume(ctx, "alice@example.com", sha256.Sum256([]byte("111111")), 5); !errors.Is(err, ErrChallengeCodeMismatch) {
		t.Fatalf("expected superseded code to mismatch, got %v", err)
	}
	if _, err := store.Consume(ctx, "alice@example.com", sha256.Sum256([]byte("222222")), 5); err != nil {
		t.Fatalf("expected current code to consume: %v", err)
	}
}

func TestOTPConsumeRedisDown(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	store := NewOTPStore(rdb, "ao")
	mr.Close()

	if _, err := store.Consume(context.Background(), "alice@example.com", sha256.Sum256([]byte("483920")), 5); !errors.Is(err, ErrChallengeRedisUnavailable) {
		t.Fatalf("expected ErrChallengeRedisUnavailable, got %v", err)
	}
}
