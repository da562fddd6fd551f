package stores

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"testing"
	"time"
)

func resetTestRecord(secret string, expiresAt int64) *ResetSessionRecord {
	return &ResetSessionRecord{
		AccountID:  "a1",
		SecretHash: sha256.Sum256([]byte(secret)),
		ExpiresAt:  expiresAt,
	}
}

func TestResetConsumeSingleUse(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewResetSessionStore(rdb, "ar")
	record := resetTestRecord("secret", time.Now().Add(10*time.Minute).Unix())

	if err := store.Save(ctx, "s1", record, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Consume(ctx, "s1", sha256.Sum256([]byte("secret")), 5)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if got.AccountID != "a1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := store.Consume(ctx, "s1", sha256.Sum256([]byte("secret")), 5); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on replay, got %v", err)
	}
}

func TestResetConsumeMismatchBurnsAttempts(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewResetSessionStore(rdb, "ar")
	record := resetTestRecord("secret", time.Now().Add(10*time.Minute).Unix())

	if err := store.Save(ctx, "s1", record, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	wrong := sha256.Sum256([]byte("forged"))
	for i := 0; i < 4; i++ {
		if _, err := store.Consume(ctx, "s1", wrong, 5); !errors.Is(err, ErrSessionSecretMismatch) {
			t.Fatalf("attempt %d: expected ErrSessionSecretMismatch, got %v", i+1, err)
		}
	}
	if _, err := store.Consume(ctx, "s1", wrong, 5); !errors.Is(err, ErrSessionAttemptsExceeded) {
		t.Fatalf("expected ErrSessionAttemptsExceeded, got %v", err)
	}

	if _, err := store.Consume(ctx, "s1", sha256.Sum256([]byte("secret")), 5); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session deleted after exhaustion, got %v", err)
	}
}

func TestResetConsumeExpiredRecord(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewResetSessionStore(rdb, "ar")
	record := resetTestRecord("secret", time.Now().Add(-time.Minute).Unix())

	if err := store.Save(ctx, "s1", record, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := store.Consume(ctx, "s1", sha256.Sum256([]byte("secret")), 5); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session to read as not found, got %v", err)
	}
}

func TestResetConsumeConcurrentSingleSuccess(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewResetSessionStore(rdb, "ar")
	record := resetTestRecord("secret", time.Now().Add(10*time.Minute).Unix())

	if err := store.Save(ctx, "s1", record, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	successes := make(chan struct{}, workers)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			if _, err := store.Consume(ctx, "s1", sha256.Sum256([]byte("secret")), 5); err == nil {
				successes <- struct{}{}
			}
		}()
	}

	close(start)
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", count)
	}
}

func TestResetDeleteIdempotent(t *testing.T) {
	mr, rdb := newStoreRedis(t)
	defer mr.Close()

	ctx := context.Background()
	store := NewResetSessionStore(rdb, "ar")
	record := resetTestRecord("secret", time.Now().Add(10*time.Minute).Unix())

	if err := store.Save(ctx, "s1", record, 10*time.Minute); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("expected second delete to be a no-op, got %v", err)
	}
	if _, err := store.Consume(ctx, "s1", sha256.Sum256([]byte("secret")), 5); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}
