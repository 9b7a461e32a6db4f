package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/utils"
)

type EventsRepo struct {
	db *DB
}

// hydrateLocked joins the current venue row and like count, and returns a
// copy the caller may mutate.
func (db *DB) hydrateLocked(e event.Event) event.Event {
	if v, ok := db.venues[e.Venue.ID]; ok {
		e.Venue = v
	}
	e.Categories = slices.Clone(e.Categories)

	n := 0
	for k := range db.likes {
		if k.eventID == e.ID {
			n++
		}
	}
	e.LikeCount = n
	return e
}

func (r *EventsRepo) InsertSeries(_ context.Context, evs []event.Event, notify *job.CreateRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, e := range evs {
		if _, ok := r.db.venues[e.Venue.ID]; !ok {
			return fmt.Errorf("event %s: %w", e.ID, venue.ErrNotFound)
		}
		if _, dup := r.db.events[e.ID]; dup {
			return fmt.Errorf("event %s already exists", e.ID)
		}
	}

	for _, e := range evs {
		e.Categories = slices.Clone(e.Categories)
		e.LikeCount = 0
		r.db.events[e.ID] = e
		r.db.order = append(r.db.order, e.ID)
	}
	if notify != nil {
		r.db.enqueueLocked(*notify)
	}
	return nil
}

func (r *EventsRepo) ListByStatus(_ context.Context, statuses []event.Status, since *time.Time) ([]event.Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var from string
	if since != nil {
		from = recurrence.FormatDate(recurrence.Day(*since))
	}

	out := make([]event.Event, 0)
	for _, id := range r.db.order {
		e := r.db.events[id]
		if len(statuses) > 0 && !slices.Contains(statuses, e.Status) {
			continue
		}
		if from != "" && e.Date < from {
			continue
		}
		out = append(out, r.db.hydrateLocked(e))
	}

	slices.SortStableFunc(out, func(a, b event.Event) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.StartTime, b.StartTime),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return out, nil
}

func (r *EventsRepo) GetByID(_ context.Context, id string) (event.Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	e, ok := r.db.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	return r.db.hydrateLocked(e), nil
}

func (r *EventsRepo) Transition(_ context.Context, id string, from []event.Status, to event.Status, notify *job.CreateRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.events[id]
	if !ok {
		return event.ErrNotFound
	}
	if !slices.Contains(from, e.Status) {
		return event.ErrInvalidTransition
	}

	e.Status = to
	e.UpdatedAt = r.db.now()
	r.db.events[id] = e

	if notify != nil {
		r.db.enqueueLocked(*notify)
	}
	return nil
}

func (r *EventsRepo) SetFeatured(_ context.Context, id string, featured bool) (event.Event, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	e, ok := r.db.events[id]
	if !ok {
		return event.Event{}, event.ErrNotFound
	}
	e.Featured = featured
	e.UpdatedAt = r.db.now()
	r.db.events[id] = e
	return r.db.hydrateLocked(e), nil
}

func (r *EventsRepo) TransitionSeries(_ context.Context, parentID string, to event.Status, notify func(count int) (*job.CreateRequest, error)) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var ids []string
	for _, id := range r.db.order {
		e := r.db.events[id]
		if e.SeriesID() == parentID && e.Status == event.StatusPending {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var req *job.CreateRequest
	if notify != nil {
		var err error
		if req, err = notify(len(ids)); err != nil {
			return 0, err
		}
	}

	now := r.db.now()
	for _, id := range ids {
		e := r.db.events[id]
		e.Status = to
		e.UpdatedAt = now
		r.db.events[id] = e
	}
	if req != nil {
		r.db.enqueueLocked(*req)
	}
	return len(ids), nil
}

func (r *EventsRepo) ListBySubmitter(_ context.Context, userID string, limit int, after *utils.SubmissionCursor) ([]event.Event, *string, error) {
	r.db.mu.RLock()
	mine := make([]event.Event, 0)
	for _, e := range r.db.events {
		if e.SubmittedBy != nil && *e.SubmittedBy == userID {
			mine = append(mine, r.db.hydrateLocked(e))
		}
	}
	r.db.mu.RUnlock()

	// newest first, id breaks ties
	slices.SortFunc(mine, func(a, b event.Event) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	if after != nil {
		i := slices.IndexFunc(mine, func(e event.Event) bool {
			c := e.CreatedAt.Compare(after.CreatedAt)
			return c < 0 || (c == 0 && e.ID < after.ID)
		})
		if i < 0 {
			mine = mine[:0]
		} else {
			mine = mine[i:]
		}
	}

	if len(mine) <= limit {
		return mine, nil, nil
	}
	mine = mine[:limit]
	last := mine[len(mine)-1]
	cur, err := utils.EncodeSubmissionCursor(last.CreatedAt, last.ID)
	if err != nil {
		return nil, nil, err
	}
	return mine, &cur, nil
}

type LikesRepo struct {
	db *DB
}

func (r *LikesRepo) Toggle(_ context.Context, userID, eventID string) (bool, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.events[eventID]; !ok {
		return false, 0, event.ErrNotFound
	}

	k := likeKey{userID: userID, eventID: eventID}
	_, had := r.db.likes[k]
	if had {
		delete(r.db.likes, k)
	} else {
		r.db.likes[k] = r.db.now()
	}

	return !had, r.db.hydrateLocked(r.db.events[eventID]).LikeCount, nil
}

func (r *LikesRepo) ListLiked(_ context.Context, userID string) ([]event.Event, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	type liked struct {
		at time.Time
		ev event.Event
	}
	var all []liked
	for k, at := range r.db.likes {
		if k.userID != userID {
			continue
		}
		if e, ok := r.db.events[k.eventID]; ok {
			all = append(all, liked{at: at, ev: r.db.hydrateLocked(e)})
		}
	}
	slices.SortFunc(all, func(a, b liked) int {
		return cmp.Or(b.at.Compare(a.at), cmp.Compare(a.ev.ID, b.ev.ID))
	})

	out := make([]event.Event, 0, len(all))
	for _, l := range all {
		out = append(out, l.ev)
	}
	return out, nil
}
