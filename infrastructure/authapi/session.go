package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/suryansh-business-work/party-wings-website/infrastructure/storage"
)

// Storage keys the session is kept under.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// ErrNoExpiry is returned for tokens without an exp claim.
var ErrNoExpiry = errors.New("token has no expiry")

// Session is the data returned by a successful OTP verification.
type Session struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user,omitempty"`
}

// ExpiresAt reads the exp claim. The signature is not checked; the token is
// only inspected to decide when to ask the visitor to log in again.
func (s *Session) ExpiresAt() (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// Expired reports whether the token's exp claim is before now.
func (s *Session) Expired(now time.Time) bool {
	exp, err := s.ExpiresAt()
	if err != nil {
		return !errors.Is(err, ErrNoExpiry)
	}
	return now.After(exp)
}

// SaveSession stores the token and user in area. Nothing is written without
// a token; a missing user is stored as an empty object.
func SaveSession(ctx context.Context, area *storage.Area, s *Session) error {
	if s == nil || s.Token == "" {
		return nil
	}
	if err := area.Set(ctx, TokenKey, s.Token); err != nil {
		return err
	}
	user := string(s.User)
	if user == "" || user == "null" {
		user = "{}"
	}
	return area.Set(ctx, UserKey, user)
}

// LoadSession reads a stored session back.
func LoadSession(ctx context.Context, area *storage.Area) (*Session, bool, error) {
	token, ok, err := area.Get(ctx, TokenKey)
	if err != nil || !ok || token == "" {
		return nil, false, err
	}
	s := &Session{Token: token}
	if user, ok, err := area.Get(ctx, UserKey); err != nil {
		return nil, false, err
	} else if ok {
		s.User = json.RawMessage(user)
	}
	return s, true, nil
}

// ClearSession removes the stored session.
func ClearSession(ctx context.Context, area *storage.Area) error {
	if err := area.Remove(ctx, TokenKey); err != nil {
		return err
	}
	return area.Remove(ctx, UserKey)
}
