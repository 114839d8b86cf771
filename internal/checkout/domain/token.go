package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

const tokenBytes = 32

// AccessToken is issued once at checkout. Only Hash and ExpiresAt are persisted.
type AccessToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// IssueToken draws 32 random bytes, hex encodes them as the raw token and
// returns the SHA-256 hex digest of that string.
func IssueToken(now time.Time, ttl time.Duration) (AccessToken, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return AccessToken{}, fmt.Errorf("generate access token: %w", err)
	}
	raw := hex.EncodeToString(buf)
	return AccessToken{
		Raw:       raw,
		Hash:      HashToken(raw),
		ExpiresAt: now.Add(ttl).UTC(),
	}, nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// VerifyToken compares the digest of raw with storedHash in constant time.
// Digests of different byte length never match.
func VerifyToken(storedHash, raw string) error {
	stored, err := hex.DecodeString(storedHash)
	if err != nil {
		return ErrUnauthorized
	}
	provided := sha256.Sum256([]byte(raw))
	if len(stored) != len(provided) {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(stored, provided[:]) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// CheckExpiry fails once now is strictly after expiresAt.
func CheckExpiry(now, expiresAt time.Time) error {
	if now.After(expiresAt) {
		return ErrExpired
	}
	return nil
}
