package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/venue"
)

type VenuesRepo struct {
	db *DB
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *VenuesRepo) GetByID(_ context.Context, id string) (venue.Venue, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	v, ok := r.db.venues[id]
	if !ok {
		return venue.Venue{}, venue.ErrNotFound
	}
	return v, nil
}

func (r *VenuesRepo) findLocked(name string) (venue.Venue, bool) {
	key := nameKey(name)
	for _, v := range r.db.venues {
		if nameKey(v.Name) == key {
			return v, true
		}
	}
	return venue.Venue{}, false
}

func (r *VenuesRepo) FindByName(_ context.Context, name string) (venue.Venue, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	v, ok := r.findLocked(name)
	if !ok {
		return venue.Venue{}, venue.ErrNotFound
	}
	return v, nil
}

func (r *VenuesRepo) Create(_ context.Context, v venue.Venue) (venue.Venue, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, taken := r.findLocked(v.Name); taken {
		return venue.Venue{}, venue.ErrDuplicate
	}
	v.Name = strings.TrimSpace(v.Name)
	r.db.venues[v.ID] = v
	return v, nil
}

func (r *VenuesRepo) FindOrCreate(_ context.Context, v venue.Venue) (venue.Venue, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if existing, ok := r.findLocked(v.Name); ok {
		return existing, false, nil
	}
	v.Name = strings.TrimSpace(v.Name)
	r.db.venues[v.ID] = v
	return v, true, nil
}

func (r *VenuesRepo) List(_ context.Context, statuses []venue.Status) ([]venue.Venue, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]venue.Venue, 0, len(r.db.venues))
	for _, v := range r.db.venues {
		if len(statuses) > 0 && !slices.Contains(statuses, v.Status) {
			continue
		}
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b venue.Venue) int {
		return cmp.Or(cmp.Compare(nameKey(a.Name), nameKey(b.Name)), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *VenuesRepo) update(id string, fn func(*venue.Venue), notify *job.CreateRequest) (venue.Venue, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	v, ok := r.db.venues[id]
	if !ok {
		return venue.Venue{}, venue.ErrNotFound
	}
	fn(&v)
	v.UpdatedAt = r.db.now()
	r.db.venues[id] = v

	if notify != nil {
		r.db.enqueueLocked(*notify)
	}
	return v, nil
}

func (r *VenuesRepo) SetStatus(_ context.Context, id string, status venue.Status, notify *job.CreateRequest) (venue.Venue, error) {
	return r.update(id, func(v *venue.Venue) { v.Status = status }, notify)
}

func (r *VenuesRepo) SetTier(_ context.Context, id string, tier venue.Tier) (venue.Venue, error) {
	if !tier.IsValid() {
		return venue.Venue{}, venue.ErrInvalidTier
	}
	return r.update(id, func(v *venue.Venue) { v.PromotionTier = tier }, nil)
}
