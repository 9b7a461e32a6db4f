package memory

import (
	"context"
	"strings"

	"github.com/geocoder89/happenings/internal/auth"
	"github.com/geocoder89/happenings/internal/domain/user"
)

type UsersRepo struct {
	db *DB
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.db.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	u, ok := r.db.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Create(_ context.Context, u user.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return user.ErrEmailAlreadyUsed
		}
	}
	r.db.users[u.ID] = u
	return nil
}

func (r *UsersRepo) UpdateName(_ context.Context, id, name string) (user.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	u, ok := r.db.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	u.Name = name
	u.UpdatedAt = r.db.now()
	r.db.users[id] = u
	return u, nil
}

// Delete removes the account with its sessions and likes. Submitted events
// stay and lose their submitter, like the ON DELETE rules of the schema.
func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.db.users, id)

	for sid, s := range r.db.sessions {
		if s.UserID == id {
			delete(r.db.sessions, sid)
		}
	}
	for k := range r.db.likes {
		if k.userID == id {
			delete(r.db.likes, k)
		}
	}
	for eid, e := range r.db.events {
		if e.SubmittedBy != nil && *e.SubmittedBy == id {
			e.SubmittedBy = nil
			r.db.events[eid] = e
		}
	}
	return nil
}

type SessionsRepo struct {
	db *DB
}

func (r *SessionsRepo) Create(_ context.Context, s auth.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[s.ID] = s
	return nil
}

func (r *SessionsRepo) Rotate(_ context.Context, id, presentedHash string, next auth.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	cur, ok := r.db.sessions[id]
	if !ok {
		return auth.ErrSessionNotFound
	}
	now := r.db.now()
	if err := auth.CheckRotatable(cur, presentedHash, now); err != nil {
		return err
	}
	if cur.UserID != next.UserID {
		return auth.ErrSessionMismatch
	}

	cur.RevokedAt = &now
	cur.ReplacedBy = &next.ID
	r.db.sessions[id] = cur
	r.db.sessions[next.ID] = next
	return nil
}

func (r *SessionsRepo) Revoke(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	now := r.db.now()
	s.RevokedAt = &now
	r.db.sessions[id] = s
	return nil
}

func (r *SessionsRepo) RevokeAll(_ context.Context, userID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()
	for id, s := range r.db.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
			r.db.sessions[id] = s
		}
	}
	return nil
}
