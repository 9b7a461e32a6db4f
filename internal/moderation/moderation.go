// Package moderation applies admin decisions to instances, series and
// venues, and queues a notification for each one.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/jobs"
	"github.com/geocoder89/happenings/internal/observability"
)

type Action string

const (
	Approve Action = "approve"
	Reject  Action = "reject"
	Cancel  Action = "cancel"
)

var (
	ErrUnknownAction = errors.New("unknown moderation action")
	ErrNotApproved   = errors.New("only approved events can be featured")
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case Approve, Reject, Cancel:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

func (a Action) eventStatus() event.Status {
	switch a {
	case Approve:
		return event.StatusApproved
	case Reject:
		return event.StatusRejected
	default:
		return event.StatusCancelled
	}
}

type Events interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
	Transition(ctx context.Context, id string, from []event.Status, to event.Status, notify *job.CreateRequest) error
	TransitionSeries(ctx context.Context, parentID string, to event.Status, notify func(count int) (*job.CreateRequest, error)) (int, error)
	SetFeatured(ctx context.Context, id string, featured bool) (event.Event, error)
}

type Venues interface {
	GetByID(ctx context.Context, id string) (venue.Venue, error)
	SetStatus(ctx context.Context, id string, status venue.Status, notify *job.CreateRequest) (venue.Venue, error)
	SetTier(ctx context.Context, id string, tier venue.Tier) (venue.Venue, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Service struct {
	events Events
	venues Venues
	pool   Invalidator
	prom   *observability.Prom
	now    func() time.Time
}

func NewService(events Events, venues Venues, pool Invalidator, prom *observability.Prom) *Service {
	return &Service{
		events: events,
		venues: venues,
		pool:   pool,
		prom:   prom,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// sources lists every status an instance may leave for to.
func sources(to event.Status) []event.Status {
	all := []event.Status{event.StatusPending, event.StatusApproved, event.StatusRejected, event.StatusCancelled}
	out := make([]event.Status, 0, len(all))
	for _, s := range all {
		if event.CanTransition(s, to) {
			out = append(out, s)
		}
	}
	return out
}

func (s *Service) decision(subject jobs.Subject, id string, a Action, count int, actorID string, submittedBy *string) (*job.CreateRequest, error) {
	p := jobs.ModerationDecidedPayload{
		Subject:   subject,
		SubjectID: id,
		Action:    string(a),
		Count:     count,
		ActorID:   actorID,
		DecidedAt: s.now(),
	}
	if submittedBy != nil {
		p.SubmittedBy = *submittedBy
	}

	key := fmt.Sprintf("moderation:%s:%s:%s:%d", subject, id, a, p.DecidedAt.UnixNano())
	req, err := jobs.NewRequest(jobs.JobModerationDecided, p, key)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Service) done(ctx context.Context, subject jobs.Subject, a Action) {
	if s.pool != nil {
		s.pool.Invalidate(ctx)
	}
	if s.prom != nil {
		s.prom.ModerationsTotal.WithLabelValues(string(subject), string(a)).Inc()
	}
}

// DecideEvent moves one instance. Approve and reject only apply to pending
// instances; cancel also applies to approved ones.
func (s *Service) DecideEvent(ctx context.Context, actorID, id string, a Action) (event.Event, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return event.Event{}, err
	}

	to := a.eventStatus()
	if !event.CanTransition(ev.Status, to) {
		return event.Event{}, event.ErrInvalidTransition
	}

	notify, err := s.decision(jobs.SubjectEvent, id, a, 1, actorID, ev.SubmittedBy)
	if err != nil {
		return event.Event{}, err
	}
	if err := s.events.Transition(ctx, id, sources(to), to, notify); err != nil {
		return event.Event{}, err
	}

	s.done(ctx, jobs.SubjectEvent, a)

	ev.Status = to
	return ev, nil
}

// DecideSeries approves or rejects every pending instance of the series the
// given instance belongs to, and reports how many moved.
func (s *Service) DecideSeries(ctx context.Context, actorID, id string, a Action) (int, error) {
	if a == Cancel {
		return 0, fmt.Errorf("%w: series only support approve and reject", ErrUnknownAction)
	}

	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	parentID := ev.SeriesID()

	n, err := s.events.TransitionSeries(ctx, parentID, a.eventStatus(), func(count int) (*job.CreateRequest, error) {
		return s.decision(jobs.SubjectSeries, parentID, a, count, actorID, ev.SubmittedBy)
	})
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.done(ctx, jobs.SubjectSeries, a)
	}
	return n, nil
}

// DecideVenue approves or rejects a venue. The status change and its
// notification are stored together.
func (s *Service) DecideVenue(ctx context.Context, actorID, id string, a Action) (venue.Venue, error) {
	var status venue.Status
	switch a {
	case Approve:
		status = venue.StatusApproved
	case Reject:
		status = venue.StatusRejected
	default:
		return venue.Venue{}, fmt.Errorf("%w: venues only support approve and reject", ErrUnknownAction)
	}

	notify, err := s.decision(jobs.SubjectVenue, id, a, 1, actorID, nil)
	if err != nil {
		return venue.Venue{}, err
	}
	v, err := s.venues.SetStatus(ctx, id, status, notify)
	if err != nil {
		return venue.Venue{}, err
	}

	s.done(ctx, jobs.SubjectVenue, a)
	return v, nil
}

// SetVenueTier changes sort priority only, so no notification is sent.
func (s *Service) SetVenueTier(ctx context.Context, id string, tier venue.Tier) (venue.Venue, error) {
	v, err := s.venues.SetTier(ctx, id, tier)
	if err != nil {
		return venue.Venue{}, err
	}
	if s.pool != nil {
		s.pool.Invalidate(ctx)
	}
	return v, nil
}

// SetFeatured pins an instance to the featured list. Only approved
// instances can be featured; unfeaturing is always allowed.
func (s *Service) SetFeatured(ctx context.Context, id string, featured bool) (event.Event, error) {
	ev, err := s.events.GetByID(ctx, id)
	if err != nil {
		return event.Event{}, err
	}
	if featured && ev.Status != event.StatusApproved {
		return event.Event{}, ErrNotApproved
	}

	ev, err = s.events.SetFeatured(ctx, id, featured)
	if err != nil {
		return event.Event{}, err
	}
	if s.pool != nil {
		s.pool.Invalidate(ctx)
	}
	return ev, nil
}
