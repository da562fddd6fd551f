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
	otpRecordVersionV1 = 1
)

var (
	ErrChallengeNotFound         = errors.New("otp challenge not found")
	ErrChallengeExpired          = errors.New("otp challenge expired")
	ErrChallengeCodeMismatch     = errors.New("otp code mismatch")
	ErrChallengeAttemptsExceeded = errors.New("otp attempts exceeded")
	ErrChallengeRedisUnavailable = errors.New("otp redis unavailable")
)

// consumeOTPLua atomically performs GET→validate→DEL/SET on an OTP challenge.
// KEYS[1] = record key
// ARGV[1] = provided code hash (32 bytes)
// ARGV[2] = max attempts (int string)
// ARGV[3] = current unix timestamp (int string)
//
// Returns:
//
//	record bytes on success
//	error string: "not_found", "expired", "attempts_exceeded", "code_mismatch"
var consumeOTPLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local providedHash = ARGV[1]
local maxAttempts = tonumber(ARGV[2])
local nowUnix = tonumber(ARGV[3])

-- Minimal binary decode: version(1) purpose(1) attempts(2 big-endian) expiresAt(8 big-endian) ...
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local a0 = string.byte(data, 3)
local a1 = string.byte(data, 4)
local attempts = a0 * 256 + a1

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 5, 12)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='expired'}
end

-- Code hash starts after version(1)+purpose(1)+attempts(2)+expiresAt(8)+accountIDLen(2)+accountID(variable)
local accountIDLen = string.byte(data, 13) * 256 + string.byte(data, 14)
local hashOffset = 15 + accountIDLen
local storedHash = string.sub(data, hashOffset, hashOffset + 31)

if storedHash ~= providedHash then
  attempts = attempts + 1
  if attempts >= maxAttempts then
    redis.call('DEL', KEYS[1])
    return {err='attempts_exceeded'}
  end
  -- Rewrite attempts bytes in the record
  local newA0 = math.floor(attempts / 256)
  local newA1 = attempts % 256
  local newData = string.sub(data, 1, 2) .. string.char(newA0, newA1) .. string.sub(data, 5)
  local ttlMs = redis.call('PTTL', KEYS[1])
  if ttlMs <= 0 then
    redis.call('DEL', KEYS[1])
    return {err='expired'}
  end
  redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
  return {err='code_mismatch'}
end

redis.call('DEL', KEYS[1])
return data
`)

// OTPRecord is the persisted form of a pending one-time code challenge.
// AccountID is empty for signup challenges where no account exists yet.
type OTPRecord struct {
	AccountID string
	CodeHash  [32]byte
	ExpiresAt int64
	Attempts  uint16
	Purpose   int
}

// OTPStore keys challenges by normalized email. A Save over an existing key
// replaces the previous challenge, which is how reissue supersedes earlier
// codes.
type OTPStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewOTPStore(redisClient redis.UniversalClient, prefix string) *OTPStore {
	if prefix == "" {
		prefix = "ao"
	}
	return &OTPStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OTPStore) key(email string) string {
	return s.prefix + ":" + email
}

func (s *OTPStore) Save(
	ctx context.Context,
	email string,
	record *OTPRecord,
	ttl time.Duration,
) error {
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
	}

	return nil
}

// Consume validates the provided code hash against the stored challenge and
// deletes it on success. Mismatches increment the attempt counter in place;
// the record is destroyed once maxAttempts is reached. All of this happens
// inside a single Lua script so concurrent verifiers cannot both succeed.
func (s *OTPStore) Consume(
	ctx context.Context,
	email string,
	providedHash [32]byte,
	maxAttempts int,
) (*OTPRecord, error) {
	key := s.key(email)
	nowUnix := time.Now().Unix()

	result, err := consumeOTPLua.Run(ctx, s.redis,
		[]string{key},
		string(providedHash[:]),
		maxAttempts,
		nowUnix,
	).Result()

	if err != nil {
		msg := err.Error()
		switch msg {
		case "not_found":
			return nil, ErrChallengeNotFound
		case "expired":
			return nil, ErrChallengeExpired
		case "attempts_exceeded":
			return nil, ErrChallengeAttemptsExceeded
		case "code_mismatch":
			return nil, ErrChallengeCodeMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrChallengeRedisUnavailable)
	}

	record, decErr := decodeOTPRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeRedisUnavailable, decErr)
	}

	// Final constant-time comparison in Go as defense-in-depth
	// (Lua already checked, but Lua string comparison is not constant-time)
	if subtle.ConstantTimeCompare(record.CodeHash[:], providedHash[:]) != 1 {
		return nil, ErrChallengeCodeMismatch
	}

	return record, nil
}

func encodeOTPRecord(record *OTPRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(otpRecordVersionV1)
	buf.WriteByte(byte(record.Purpose))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.AccountID) > 65535 {
		return nil, errors.New("otp record account id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.AccountID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.AccountID)
	buf.Write(record.CodeHash[:])

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte) (*OTPRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	purpose, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &OTPRecord{
		Purpose: int(purpose),
	}

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

	if _, err := io.ReadFull(reader, record.CodeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
