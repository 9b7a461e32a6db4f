// Package seed loads venues and events from a YAML fixture. Recurring
// fixtures go through the submission service so they expand exactly like
// user submissions.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/submission"
)

type Fixture struct {
	Venues []VenueFixture `yaml:"venues"`
	Events []EventFixture `yaml:"events"`
}

type VenueFixture struct {
	Name         string     `yaml:"name"`
	Address      string     `yaml:"address"`
	Neighborhood string     `yaml:"neighborhood"`
	Website      string     `yaml:"website"`
	Tier         venue.Tier `yaml:"tier"`
}

// EventFixture dates are either absolute (date) or relative to the seed day
// (in_days), so a fixture stays useful after it is written.
type EventFixture struct {
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Venue       string             `yaml:"venue"`
	Date        string             `yaml:"date"`
	InDays      *int               `yaml:"in_days"`
	StartTime   string             `yaml:"start_time"`
	EndTime     string             `yaml:"end_time"`
	Categories  []event.Category   `yaml:"categories"`
	Price       string             `yaml:"price"`
	TicketURL   string             `yaml:"ticket_url"`
	AllDay      bool               `yaml:"all_day"`
	Featured    bool               `yaml:"featured"`
	Recurrence  *RecurrenceFixture `yaml:"recurrence"`
}

type RecurrenceFixture struct {
	Pattern recurrence.Pattern `yaml:"pattern"`
	EndDate string             `yaml:"end_date"`
	// Weeks sets the end date relative to the anchor when EndDate is empty.
	Weeks  int      `yaml:"weeks"`
	Dates  []string `yaml:"dates"`
	InDays []int    `yaml:"in_days"`
}

// Load decodes and checks a fixture. Unknown keys are rejected so typos do
// not silently drop data.
func Load(r io.Reader) (Fixture, error) {
	var f Fixture

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Fixture{}, errors.New("seed: empty fixture")
		}
		return Fixture{}, fmt.Errorf("seed: decode fixture: %w", err)
	}

	return f, f.Validate()
}

func (f Fixture) Validate() error {
	known := make(map[string]struct{}, len(f.Venues))
	for i, v := range f.Venues {
		if strings.TrimSpace(v.Name) == "" || strings.TrimSpace(v.Address) == "" {
			return fmt.Errorf("seed: venue %d needs a name and address", i)
		}
		if v.Tier != "" && !v.Tier.IsValid() {
			return fmt.Errorf("seed: venue %q: %w", v.Name, venue.ErrInvalidTier)
		}
		known[strings.ToLower(v.Name)] = struct{}{}
	}

	for i, e := range f.Events {
		switch {
		case strings.TrimSpace(e.Title) == "":
			return fmt.Errorf("seed: event %d has no title", i)
		case e.Date == "" && e.InDays == nil:
			return fmt.Errorf("seed: event %q needs date or in_days", e.Title)
		case e.StartTime == "" && !e.AllDay:
			return fmt.Errorf("seed: event %q needs start_time", e.Title)
		case len(e.Categories) == 0:
			return fmt.Errorf("seed: event %q needs a category", e.Title)
		}
		if _, ok := known[strings.ToLower(e.Venue)]; !ok {
			return fmt.Errorf("seed: event %q references unknown venue %q", e.Title, e.Venue)
		}
		for _, c := range e.Categories {
			if !c.IsValid() {
				return fmt.Errorf("seed: event %q: unknown category %q", e.Title, c)
			}
		}
		if e.Recurrence != nil && !e.Recurrence.Pattern.IsValid() {
			return fmt.Errorf("seed: event %q: unknown recurrence pattern %q", e.Title, e.Recurrence.Pattern)
		}
	}
	return nil
}

type Venues interface {
	FindOrCreate(ctx context.Context, v venue.Venue) (venue.Venue, bool, error)
	SetTier(ctx context.Context, id string, tier venue.Tier) (venue.Venue, error)
}

type Events interface {
	ListByStatus(ctx context.Context, statuses []event.Status, since *time.Time) ([]event.Event, error)
	SetFeatured(ctx context.Context, id string, featured bool) (event.Event, error)
}

type Submitter interface {
	Submit(ctx context.Context, caller submission.Caller, req event.CreateEventRequest) (submission.Result, error)
}

type Report struct {
	VenuesCreated int
	SeriesCreated int
	Instances     int
	Skipped       int
	Truncated     int
	Featured      int
}

type Seeder struct {
	venues Venues
	events Events
	submit Submitter
	caller submission.Caller
	log    *slog.Logger
}

// New builds a seeder that submits as caller, normally the admin account.
func New(venues Venues, events Events, submit Submitter, caller submission.Caller, log *slog.Logger) *Seeder {
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{venues: venues, events: events, submit: submit, caller: caller, log: log}
}

// Apply stores f relative to today. Events already present with the same
// title, venue and first date are skipped, so re-running a fixture is safe.
func (s *Seeder) Apply(ctx context.Context, f Fixture, today time.Time) (Report, error) {
	var rep Report
	today = recurrence.Day(today)

	venueIDs := make(map[string]string, len(f.Venues))
	for _, vf := range f.Venues {
		v, created, err := s.venues.FindOrCreate(ctx, venue.New(venue.CreateVenueRequest{
			Name:         vf.Name,
			Address:      vf.Address,
			Neighborhood: vf.Neighborhood,
			Website:      vf.Website,
		}, true))
		if err != nil {
			return rep, fmt.Errorf("seed venue %q: %w", vf.Name, err)
		}
		if created {
			rep.VenuesCreated++
		}
		if vf.Tier != "" && vf.Tier != v.PromotionTier {
			if v, err = s.venues.SetTier(ctx, v.ID, vf.Tier); err != nil {
				return rep, fmt.Errorf("seed venue %q tier: %w", vf.Name, err)
			}
		}
		venueIDs[strings.ToLower(vf.Name)] = v.ID
	}

	existing, err := s.events.ListByStatus(ctx, nil, nil)
	if err != nil {
		return rep, fmt.Errorf("seed: list events: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[dedupeKey(e.Title, e.Venue.ID, e.Date)] = struct{}{}
	}

	for _, ef := range f.Events {
		req, err := ef.request(venueIDs[strings.ToLower(ef.Venue)], today)
		if err != nil {
			return rep, err
		}
		if _, ok := seen[dedupeKey(req.Title, req.VenueID, req.Date)]; ok {
			rep.Skipped++
			continue
		}

		res, err := s.submit.Submit(ctx, s.caller, req)
		if err != nil {
			return rep, fmt.Errorf("seed event %q: %w", ef.Title, err)
		}

		rep.SeriesCreated++
		rep.Instances += len(res.Events)
		if ef.Featured {
			for _, ev := range res.Events {
				if _, err := s.events.SetFeatured(ctx, ev.ID, true); err != nil {
					return rep, fmt.Errorf("seed event %q featured: %w", ef.Title, err)
				}
			}
			rep.Featured += len(res.Events)
		}
		if res.Truncated {
			rep.Truncated++
		}
		seen[dedupeKey(req.Title, req.VenueID, req.Date)] = struct{}{}
		s.log.InfoContext(ctx, "seeded event", "title", ef.Title, "instances", len(res.Events))
	}

	return rep, nil
}

func dedupeKey(title, venueID, date string) string {
	return strings.ToLower(title) + "|" + venueID + "|" + date
}

func resolveDate(date string, inDays *int, today time.Time) (time.Time, error) {
	if inDays != nil {
		return today.AddDate(0, 0, *inDays), nil
	}
	return recurrence.ParseDate(date)
}

func (ef EventFixture) request(venueID string, today time.Time) (event.CreateEventRequest, error) {
	anchor, err := resolveDate(ef.Date, ef.InDays, today)
	if err != nil {
		return event.CreateEventRequest{}, fmt.Errorf("seed event %q: %w", ef.Title, err)
	}

	start := ef.StartTime
	if start == "" {
		start = "00:00"
	}

	req := event.CreateEventRequest{
		Title:       ef.Title,
		Description: ef.Description,
		Date:        recurrence.FormatDate(anchor),
		StartTime:   start,
		VenueID:     venueID,
		Categories:  ef.Categories,
		Price:       ef.Price,
		TicketURL:   ef.TicketURL,
		AllDay:      ef.AllDay,
	}
	if ef.EndTime != "" {
		end := ef.EndTime
		req.EndTime = &end
	}

	if rf := ef.Recurrence; rf != nil {
		rr := &event.RecurrenceRequest{Pattern: rf.Pattern, Dates: rf.Dates}
		switch {
		case rf.EndDate != "":
			end := rf.EndDate
			rr.EndDate = &end
		case rf.Weeks > 0:
			end := recurrence.FormatDate(anchor.AddDate(0, 0, 7*rf.Weeks))
			rr.EndDate = &end
		}
		for _, n := range rf.InDays {
			rr.Dates = append(rr.Dates, recurrence.FormatDate(today.AddDate(0, 0, n)))
		}
		req.Recurrence = rr
	}

	return req, nil
}
