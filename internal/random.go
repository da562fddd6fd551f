package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// TokenID is the random identifier half of a reset token. The secret half
// never touches Redis in plaintext.
type TokenID [16]byte

const (
	resetTokenRawSize = 48
	resetSecretSize   = 32
)

func NewTokenID() (TokenID, error) {
	var tid TokenID
	_, err := rand.Read(tid[:])
	return tid, err
}

func (t TokenID) Bytes() []byte {
	return t[:]
}

func (t TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func ParseTokenID(tokenID string) (TokenID, error) {
	var tid TokenID

	raw, err := base64.RawURLEncoding.DecodeString(tokenID)
	if err != nil {
		return tid, err
	}
	if len(raw) != len(tid) {
		return tid, errors.New("invalid token id size")
	}

	copy(tid[:], raw)
	return tid, nil
}

func NewResetSecret() ([resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashResetSecret(secret [resetSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeResetToken packs the session id and secret into a single opaque
// base64url string handed to the client between the two reset steps.
func EncodeResetToken(sessionID string, secret [resetSecretSize]byte) (string, error) {
	tid, err := ParseTokenID(sessionID)
	if err != nil {
		return "", err
	}

	var raw [resetTokenRawSize]byte
	copy(raw[:len(tid)], tid[:])
	copy(raw[len(tid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

func DecodeResetToken(token string) (string, [resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != resetTokenRawSize {
		return "", secret, errors.New("invalid reset token size")
	}

	var tid TokenID
	copy(tid[:], raw[:len(tid)])
	copy(secret[:], raw[len(tid):])

	return tid.String(), secret, nil
}

// NewOTPCode generates a numeric one-time code. Each digit is drawn
// independently from crypto/rand so the code has no modulo bias.
func NewOTPCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	code := b.String()
	if len(code) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return code, nil
}

// HashOTPCode hashes a one-time code for storage. Codes are low entropy, so
// the stored hash is only a secondary defense; limiter and attempt caps are
// the primary one.
func HashOTPCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}
