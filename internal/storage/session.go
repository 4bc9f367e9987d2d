package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"qroll/internal/models"
)

const (
	TokenKey     = "qroll_token"
	UserKey      = "qroll_user"
	SignedOutKey = "qroll_signed_out"
)

// SessionStore holds the bearer token and the cached user. Both are written
// and cleared together.
type SessionStore struct {
	kv KV
}

func NewSessionStore(kv KV) *SessionStore {
	return &SessionStore{kv: kv}
}

// Open builds a SessionStore for the configured backend ("file", "redis" or "memory").
func Open(storageType, path, redisURL string) (*SessionStore, func() error, error) {
	switch storageType {
	case "", "file":
		kv, err := NewFileKV(path)
		if err != nil {
			return nil, nil, err
		}
		return NewSessionStore(kv), func() error { return nil }, nil
	case "redis":
		client, err := NewRedisClient(redisURL)
		if err != nil {
			return nil, nil, err
		}
		kv := NewRedisKV(client, "qroll:")
		return NewSessionStore(kv), kv.Close, nil
	case "memory":
		return NewSessionStore(NewMemoryKV()), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStorage, storageType)
	}
}

func (s *SessionStore) Token() (string, bool) {
	tok, ok := s.kv.Get(TokenKey)
	if !ok || tok == "" {
		return "", false
	}
	return tok, true
}

// User returns the cached profile. Unreadable data counts as absent.
func (s *SessionStore) User() (*models.User, bool) {
	raw, ok := s.kv.Get(UserKey)
	if !ok || raw == "" {
		return nil, false
	}
	var u models.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}
	return &u, true
}

func (s *SessionStore) SetSession(token string, user *models.User) error {
	if token == "" || user == nil {
		return fmt.Errorf("session requires both token and user")
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.kv.Set(TokenKey, token); err != nil {
		return err
	}
	if err := s.kv.Set(UserKey, string(raw)); err != nil {
		_ = s.kv.Delete(TokenKey)
		return err
	}
	return nil
}

// SetUser replaces the cached user, keeping the token.
func (s *SessionStore) SetUser(user *models.User) error {
	tok, ok := s.Token()
	if !ok {
		return fmt.Errorf("no token to attach user to")
	}
	return s.SetSession(tok, user)
}

func (s *SessionStore) Clear() error {
	return s.kv.Delete(TokenKey, UserKey)
}

// MarkSignedOut records an explicit logout. The next sign-in page must not
// pick the Google account automatically.
func (s *SessionStore) MarkSignedOut() error {
	return s.kv.Set(SignedOutKey, "1")
}

// TakeSignedOut reports whether a logout was recorded and clears the mark.
func (s *SessionStore) TakeSignedOut() bool {
	v, ok := s.kv.Get(SignedOutKey)
	if !ok {
		return false
	}
	_ = s.kv.Delete(SignedOutKey)
	return v == "1"
}

func (s *SessionStore) IsAuthenticated() bool {
	if _, ok := s.Token(); !ok {
		return false
	}
	_, ok := s.User()
	return ok
}

// TokenExpiry reads the exp claim of a JWT bearer token without verifying it.
// ok is false for opaque tokens or tokens without exp.
func (s *SessionStore) TokenExpiry() (exp time.Time, ok bool) {
	tok, present := s.Token()
	if !present {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	date, err := claims.GetExpirationTime()
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}
