package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultLifetime = 30 * time.Minute

type claims struct {
	AccountID string `json:"account_id"`
	Epoch     string `json:"epoch"`
	jwt.RegisteredClaims
}

// Service mints and validates session tokens for one process run.
type Service struct {
	key      []byte
	epoch    string
	lifetime time.Duration
	now      func() time.Time
}

func New(cfg Config) *Service {
	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = defaultLifetime
	}
	key := []byte(cfg.Secret)
	if len(key) == 0 {
		// No configured secret: sign with a random per-process key.
		b := make([]byte, 32)
		_, _ = rand.Read(b)
		key = []byte(hex.EncodeToString(b))
	}
	return &Service{
		key: key,
		// The epoch nonce is minted once per process; tokens from earlier
		// runs carry a different value and fail validation.
		epoch:    uuid.NewString(),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Epoch returns the nonce identifying this process run.
func (s *Service) Epoch() string { return s.epoch }

// Lifetime returns the configured token validity window.
func (s *Service) Lifetime() time.Duration { return s.lifetime }

// Issue mints a signed token for an account.
func (s *Service) Issue(accountID string) (string, error) {
	now := s.now()
	c := &claims{
		AccountID: accountID,
		Epoch:     s.epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "chronovault",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.key)
}

// Validate checks a token's signature, lifetime, and process epoch.
func (s *Service) Validate(token string) (*Session, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return s.key, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalid
	}
	if c.Epoch != s.epoch {
		return nil, ErrStaleSession
	}
	sess := &Session{
		ID:        c.ID,
		AccountID: c.AccountID,
	}
	if c.IssuedAt != nil {
		sess.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}
