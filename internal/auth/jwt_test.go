package auth

import (
	"errors"
	"testing"
	"time"
)

func TestManager_AccessRoundTrip(t *testing.T) {
	m := NewManager("secret", time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken("u1", "a@b.test", "admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := m.VerifyRefreshToken(raw); !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
}

func TestManager_RefreshAndHash(t *testing.T) {
	m := NewManager("secret", time.Minute, time.Hour)

	raw, jti, exp, err := m.GenerateRefreshToken("u1", "a@b.test", "user")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := m.VerifyRefreshToken(raw)
	if err != nil || claims.JTI != jti {
		t.Fatalf("verify refresh: %v", err)
	}
	if time.Until(exp) < 59*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}
	if m.HashRefreshToken(raw) != m.HashRefreshToken(raw) || m.HashRefreshToken(raw) == m.HashRefreshToken(raw+"x") {
		t.Fatalf("hash must be deterministic and input sensitive")
	}
}

func TestManager_RejectsOtherSecret(t *testing.T) {
	raw, _ := NewManager("one", time.Minute, time.Hour).GenerateAccessToken("u1", "", "user")
	if _, err := NewManager("two", time.Minute, time.Hour).VerifyAccessToken(raw); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}
}

func TestCheckRotatable(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name string
		s    Session
		want error
	}{
		{"ok", Session{TokenHash: "h", ExpiresAt: now.Add(time.Hour)}, nil},
		{"revoked", Session{TokenHash: "h", ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, ErrSessionRevoked},
		{"expired", Session{TokenHash: "h", ExpiresAt: now.Add(-time.Second)}, ErrSessionExpired},
		{"mismatch", Session{TokenHash: "other", ExpiresAt: now.Add(time.Hour)}, ErrSessionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckRotatable(tt.s, "h", now); !errors.Is(got, tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}
