package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// Status is the persisted lifecycle flag of a token.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
)

// DefaultTTL is the validity window used when the caller gives none.
const DefaultTTL = 300 * time.Second

// valueBytes gives 256 bits of entropy per token value.
const valueBytes = 32

// ErrDuplicateToken is returned by Create when the value already exists.
var ErrDuplicateToken = errors.New("token value already exists")

// Token is a short-lived credential authorizing attendance submissions.
type Token struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    Status    `json:"status"`
}

// ExpiredAt reports whether the token is past its window at now.
// The expiry instant itself is still valid.
func (t Token) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// NewValue returns a URL-safe random token value.
func NewValue() (string, error) {
	buf := make([]byte, valueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
