package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetSessionVersionV1 = 1
)

var (
	ErrSessionNotFound         = errors.New("reset session not found")
	ErrSessionSecretMismatch   = errors.New("reset session secret mismatch")
	ErrSessionAttemptsExceeded = errors.New("reset session attempts exceeded")
	ErrSessionRedisUnavailable = errors.New("reset session redis unavailable")
)

// ResetSessionRecord is the persisted form of an open recovery session.
// Its existence means the flow is between the verification step and the
// new-password step; consuming or deleting it closes the flow.
type ResetSessionRecord struct {
	AccountID  string
	SecretHash [32]byte
	ExpiresAt  int64
	Attempts   uint16
}

type ResetSessionStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewResetSessionStore(redisClient redis.UniversalClient, prefix string) *ResetSessionStore {
	if prefix == "" {
		prefix = "ar"
	}
	return &ResetSessionStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *ResetSessionStore) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *ResetSessionStore) Save(
	ctx context.Context,
	sessionID string,
	record *ResetSessionRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeResetSessionRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sessionID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}

	return nil
}

// Consume is a compare-and-swap loop over WATCH. Exactly one concurrent
// caller with the correct secret observes success; everyone else sees
// not-found or mismatch. Mismatches burn an attempt and rewrite the record
// under the remaining TTL.
func (s *ResetSessionStore) Consume(
	ctx context.Context,
	sessionID string,
	providedHash [32]byte,
	maxAttempts int,
) (*ResetSessionRecord, error) {
	const maxRetries = 4
	key := s.key(sessionID)

	for i := 0; i < maxRetries; i++ {
		var matched *ResetSessionRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeResetSessionRecord(data)
			if err != nil {
				return err
			}

			now := time.Now()
			if now.Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrSessionNotFound
			}

			if subtle.ConstantTimeCompare(record.SecretHash[:], providedHash[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return ErrSessionAttemptsExceeded
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				if ttl <= 0 {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return ErrSessionNotFound
				}

				updated, err := encodeResetSessionRecord(record)
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrSessionSecretMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil):
				return nil, ErrSessionNotFound
			case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionSecretMismatch), errors.Is(err, ErrSessionAttemptsExceeded):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	return nil, ErrSessionNotFound
}

// Delete discards an open session without consuming it. Used by the abandon
// path; deleting a missing session is not an error.
func (s *ResetSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return nil
}

// Get is a non-destructive read. The abandon path uses it to check the token
// secret without burning a Consume attempt. Expired sessions read as missing.
func (s *ResetSessionStore) Get(ctx context.Context, sessionID string) (*ResetSessionRecord, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}

	record, err := decodeResetSessionRecord(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		return nil, ErrSessionNotFound
	}

	return record, nil
}

func encodeResetSessionRecord(record *ResetSessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetSessionVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.AccountID) > 65535 {
		return nil, errors.New("reset session account id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.AccountID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.AccountID)
	buf.Write(record.SecretHash[:])

	return buf.Bytes(), nil
}

func decodeResetSessionRecord(data []byte) (*ResetSessionRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetSessionVersionV1 {
		return nil, errors.New("invalid reset session version")
	}

	record := &ResetSessionRecord{}

	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var accountIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &accountIDLen); err != nil {
		return nil, err
	}

	accountID := make([]byte, accountIDLen)
	if _, err := io.ReadFull(reader, accountID); err != nil {
		return nil, err
	}
	record.AccountID = string(accountID)

	if _, err := io.ReadFull(reader, record.SecretHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
