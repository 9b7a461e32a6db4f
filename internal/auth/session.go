package auth

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionMismatch = errors.New("session token mismatch")
)

// Session is one issued refresh token, keyed by its jti.
type Session struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

// SessionStore persists refresh sessions. Rotate must revoke the presented
// session and create next atomically, rejecting revoked, expired or
// mismatched sessions.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Rotate(ctx context.Context, id, presentedHash string, next Session) error
	Revoke(ctx context.Context, id string) error
	// RevokeAll ends every open session of a user.
	RevokeAll(ctx context.Context, userID string) error
}

// CheckRotatable applies the rotation preconditions to a locked session row.
func CheckRotatable(s Session, presentedHash string, now time.Time) error {
	switch {
	case s.RevokedAt != nil:
		return ErrSessionRevoked
	case now.After(s.ExpiresAt):
		return ErrSessionExpired
	case s.TokenHash != presentedHash:
		return ErrSessionMismatch
	default:
		return nil
	}
}
