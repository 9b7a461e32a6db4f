// Package submission turns a validated submit request into a persisted
// event series.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/jobs"
	"github.com/geocoder89/happenings/internal/observability"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/series"
)

var ErrVenueNotApproved = errors.New("venue is not approved")

type Venues interface {
	GetByID(ctx context.Context, id string) (venue.Venue, error)
	FindOrCreate(ctx context.Context, v venue.Venue) (venue.Venue, bool, error)
}

type Events interface {
	InsertSeries(ctx context.Context, evs []event.Event, notify *job.CreateRequest) error
}

type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Caller is the identity decision made by the auth layer.
type Caller struct {
	UserID     string
	Admin      bool
	Privileged bool
}

type Result struct {
	Events       []event.Event
	Venue        venue.Venue
	VenueCreated bool
	Truncated    bool
	Dropped      int
}

type Service struct {
	venues Venues
	events Events
	pool   Invalidator
	prom   *observability.Prom
	log    *slog.Logger
	now    func() time.Time
}

func NewService(venues Venues, events Events, pool Invalidator, prom *observability.Prom, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		venues: venues,
		events: events,
		pool:   pool,
		prom:   prom,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Submit expands the recurrence, resolves the venue and stores every
// instance with its moderation job in one write.
func (s *Service) Submit(ctx context.Context, caller Caller, req event.CreateEventRequest) (Result, error) {
	anchor, err := recurrence.ParseDate(req.Date)
	if err != nil {
		return Result{}, &recurrence.ValidationError{Reason: "date must be YYYY-MM-DD", Err: recurrence.ErrMissingAnchor}
	}

	// the recurrence is checked first so a rejected submission never
	// leaves a proposed venue behind
	expanded, pattern, end, err := expand(anchor, req.Recurrence)
	if err != nil {
		return Result{}, err
	}

	v, created, err := s.resolveVenue(ctx, caller, req)
	if err != nil {
		return Result{}, err
	}

	submittedBy := caller.UserID
	evs, err := series.Materialize(series.Input{
		Template:   event.TemplateFromRequest(req, v, &submittedBy),
		Dates:      expanded.Dates,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Privileged: caller.Privileged,
		Pattern:    pattern,
		End:        end,
		Now:        s.now(),
	})
	if err != nil {
		return Result{}, err
	}

	parent := evs[0]
	notify, err := jobs.NewRequest(jobs.JobSubmissionReceived, jobs.SubmissionReceivedPayload{
		ParentEventID: parent.ID,
		Title:         parent.Title,
		VenueName:     v.Name,
		Instances:     len(evs),
		Status:        string(parent.Status),
		SubmittedBy:   caller.UserID,
		Truncated:     expanded.Truncated,
		DroppedDates:  expanded.Dropped,
		SubmittedAt:   parent.CreatedAt,
	}, "submission:"+parent.ID)
	if err != nil {
		return Result{}, err
	}

	if err := s.events.InsertSeries(ctx, evs, &notify); err != nil {
		return Result{}, fmt.Errorf("store series: %w", err)
	}

	if parent.Status == event.StatusApproved && s.pool != nil {
		s.pool.Invalidate(ctx)
	}

	s.record(ctx, parent, pattern, expanded)

	return Result{
		Events:       evs,
		Venue:        v,
		VenueCreated: created,
		Truncated:    expanded.Truncated,
		Dropped:      expanded.Dropped,
	}, nil
}

func (s *Service) resolveVenue(ctx context.Context, caller Caller, req event.CreateEventRequest) (venue.Venue, bool, error) {
	switch {
	case req.VenueID != "":
		v, err := s.venues.GetByID(ctx, req.VenueID)
		if err != nil {
			return venue.Venue{}, false, err
		}
		if v.Status != venue.StatusApproved && !caller.Admin {
			return venue.Venue{}, false, ErrVenueNotApproved
		}
		return v, false, nil

	case req.NewVenue != nil:
		proposed := venue.New(venue.CreateVenueRequest{
			Name:    req.NewVenue.Name,
			Address: req.NewVenue.Address,
		}, caller.Admin)
		return s.venues.FindOrCreate(ctx, proposed)

	default:
		return venue.Venue{}, false, event.ErrVenueRequired
	}
}

// expand turns the optional recurrence block into concrete dates. A missing
// block is a single-date event.
func expand(anchor time.Time, rr *event.RecurrenceRequest) (recurrence.Result, *recurrence.Pattern, *time.Time, error) {
	if rr == nil {
		return recurrence.Result{Dates: []time.Time{anchor}}, nil, nil, nil
	}

	rule := recurrence.Rule{Anchor: anchor, Pattern: rr.Pattern}

	if rr.EndDate != nil && rr.Pattern != recurrence.Custom {
		end, err := recurrence.ParseDate(*rr.EndDate)
		if err != nil {
			return recurrence.Result{}, nil, nil, &recurrence.ValidationError{Reason: "endDate must be YYYY-MM-DD", Err: err}
		}
		rule.End = &end
	}

	for _, raw := range rr.Dates {
		d, err := recurrence.ParseDate(raw)
		if err != nil {
			return recurrence.Result{}, nil, nil, &recurrence.ValidationError{Reason: fmt.Sprintf("date %q must be YYYY-MM-DD", raw), Err: err}
		}
		rule.Dates = append(rule.Dates, d)
	}

	res, err := recurrence.Expand(rule)
	if err != nil {
		return recurrence.Result{}, nil, nil, err
	}

	p := rr.Pattern
	return res, &p, rule.End, nil
}

func (s *Service) record(ctx context.Context, parent event.Event, pattern *recurrence.Pattern, res recurrence.Result) {
	label := "single"
	if pattern != nil {
		label = string(*pattern)
	}

	if s.prom != nil {
		s.prom.SeriesCreated.WithLabelValues(label, string(parent.Status)).Inc()
		if res.Truncated {
			s.prom.SeriesTruncated.Inc()
		}
	}

	if res.Truncated {
		s.log.WarnContext(ctx, "series truncated",
			"parent_event_id", parent.ID,
			"pattern", label,
			"kept", len(res.Dates),
			"dropped", res.Dropped,
		)
	}
}
