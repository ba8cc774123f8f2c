// Package auth manages the per-session API token: loading it from disk and
// inspecting its claims so the client can tell an expired credential apart
// from a server rejection before it dials anything.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when the session has no stored token yet.
var ErrNoToken = errors.New("no token stored for session")

// Token is an API credential with the claims the client cares about.
// The signature is not verified here; the server is the authority, the
// client only reads claims to know who it is and when to re-authenticate.
type Token struct {
	Raw       string
	Subject   string
	ExpiresAt time.Time
}

// Inspect parses a raw JWT without verifying its signature and extracts
// the subject and expiry claims.
func Inspect(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty token")
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	t := &Token{Raw: raw, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		t.ExpiresAt = claims.ExpiresAt.Time
	}
	return t, nil
}

// Expired reports whether the token has an expiry claim in the past.
// Tokens without an exp claim never expire.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Bearer returns the Authorization header value for this token.
func (t *Token) Bearer() string {
	return "Bearer " + t.Raw
}

// Load reads and inspects the token stored at path.
func Load(path string) (*Token, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	return Inspect(string(b))
}

// Save writes a raw token to path, readable only by the owner.
func Save(path, raw string) error {
	return os.WriteFile(path, []byte(strings.TrimSpace(raw)+"\n"), 0o600)
}
