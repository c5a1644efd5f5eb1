package session

import (
	"errors"
	"time"
)

var (
	// ErrStaleSession means the token was minted by an earlier process epoch.
	ErrStaleSession = errors.New("session from a previous run")
	// ErrExpired means the token outlived its lifetime.
	ErrExpired = errors.New("session expired")
	// ErrInvalid covers malformed or badly signed tokens.
	ErrInvalid = errors.New("session invalid")
)

// Config controls token issuance.
type Config struct {
	// Lifetime bounds token validity. Default 30m.
	Lifetime time.Duration
	// Secret signs tokens. Empty generates a random per-process secret,
	// which also invalidates tokens across restarts on its own.
	Secret string
}

// Session is the validated identity carried by a token.
type Session struct {
	ID        string
	AccountID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
