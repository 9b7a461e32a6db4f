package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/repo/memory"
)

type countingPool struct{ n int }

func (p *countingPool) Invalidate(context.Context) { p.n++ }

func strPtr(s string) *string { return &s }

func baseRequest() event.CreateEventRequest {
	return event.CreateEventRequest{
		Title:       "  Jazz at the Grad Club ",
		Description: "Live jazz",
		Date:        "2025-01-15",
		StartTime:   "20:00",
		Categories:  []event.Category{event.CategoryConcert},
		Price:       "$10",
		NewVenue:    &event.NewVenueRequest{Name: "Grad Club", Address: "162 Barrie St"},
	}
}

func newService(t *testing.T) (*Service, *memory.DB, *countingPool) {
	t.Helper()
	db := memory.NewDB()
	pool := &countingPool{}
	s := NewService(db.Venues(), db.Events(), pool, nil, nil)
	s.now = func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC) }
	return s, db, pool
}

func TestSubmitWeeklySeries(t *testing.T) {
	s, db, pool := newService(t)
	req := baseRequest()
	req.Recurrence = &event.RecurrenceRequest{Pattern: recurrence.Weekly, EndDate: strPtr("2025-02-05")}

	res, err := s.Submit(context.Background(), Caller{UserID: "u1"}, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []string{"2025-01-15", "2025-01-22", "2025-01-29", "2025-02-05"}
	if len(res.Events) != len(want) {
		t.Fatalf("instances = %d, want %d", len(res.Events), len(want))
	}
	for i, ev := range res.Events {
		if ev.Date != want[i] {
			t.Errorf("instance %d date = %s, want %s", i, ev.Date, want[i])
		}
		if ev.Status != event.StatusPending {
			t.Errorf("instance %d status = %s, want pending", i, ev.Status)
		}
		if ev.Title != "Jazz at the Grad Club" {
			t.Errorf("title not trimmed: %q", ev.Title)
		}
	}
	if !res.VenueCreated || res.Venue.Status != venue.StatusPending {
		t.Fatalf("new venue should be created pending, got %+v created=%v", res.Venue, res.VenueCreated)
	}
	if pool.n != 0 {
		t.Fatal("pending submissions must not invalidate the public pool")
	}

	j, err := db.Jobs().ClaimNext(context.Background(), "w")
	if err != nil {
		t.Fatalf("expected a queued job: %v", err)
	}
	if j.Type != "submission.received" {
		t.Fatalf("job type = %s", j.Type)
	}
}

func TestSubmitPrivilegedApprovesBatch(t *testing.T) {
	s, _, pool := newService(t)
	req := baseRequest()
	req.Recurrence = &event.RecurrenceRequest{Pattern: recurrence.Biweekly, EndDate: strPtr("2025-02-12")}

	res, err := s.Submit(context.Background(), Caller{UserID: "admin", Admin: true, Privileged: true}, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	for _, ev := range res.Events {
		if ev.Status != event.StatusApproved {
			t.Fatalf("status = %s, want approved", ev.Status)
		}
	}
	if res.Venue.Status != venue.StatusApproved {
		t.Fatalf("admin-proposed venue status = %s", res.Venue.Status)
	}
	if pool.n != 1 {
		t.Fatalf("invalidations = %d, want 1", pool.n)
	}
}

func TestSubmitReusesVenueByName(t *testing.T) {
	s, _, _ := newService(t)
	ctx := context.Background()

	first, err := s.Submit(ctx, Caller{UserID: "u1"}, baseRequest())
	if err != nil {
		t.Fatalf("first: %v", err)
	}

	req := baseRequest()
	req.NewVenue = &event.NewVenueRequest{Name: "GRAD CLUB", Address: "elsewhere"}
	second, err := s.Submit(ctx, Caller{UserID: "u2"}, req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.VenueCreated || second.Venue.ID != first.Venue.ID {
		t.Fatal("expected the existing venue to be reused")
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	s, db, _ := newService(t)
	ctx := context.Background()

	pending, _ := db.Venues().Create(ctx, venue.New(venue.CreateVenueRequest{Name: "Pending Pub", Address: "x st"}, false))

	tests := []struct {
		name string
		mod  func(*event.CreateEventRequest)
		want error
	}{
		{
			name: "no venue",
			mod:  func(r *event.CreateEventRequest) { r.NewVenue = nil },
			want: event.ErrVenueRequired,
		},
		{
			name: "unknown venue id",
			mod:  func(r *event.CreateEventRequest) { r.NewVenue = nil; r.VenueID = "missing" },
			want: venue.ErrNotFound,
		},
		{
			name: "unapproved venue",
			mod:  func(r *event.CreateEventRequest) { r.NewVenue = nil; r.VenueID = pending.ID },
			want: ErrVenueNotApproved,
		},
		{
			name: "end before anchor",
			mod: func(r *event.CreateEventRequest) {
				r.Recurrence = &event.RecurrenceRequest{Pattern: recurrence.Weekly, EndDate: strPtr("2025-01-01")}
			},
			want: recurrence.ErrEndBeforeAnchor,
		},
		{
			name: "span too long",
			mod: func(r *event.CreateEventRequest) {
				r.Recurrence = &event.RecurrenceRequest{Pattern: recurrence.Monthly, EndDate: strPtr("2026-06-01")}
			},
			want: recurrence.ErrSpanTooLong,
		},
		{
			name: "custom date before anchor",
			mod: func(r *event.CreateEventRequest) {
				r.Recurrence = &event.RecurrenceRequest{Pattern: recurrence.Custom, Dates: []string{"2025-01-01"}}
			},
			want: recurrence.ErrDateBeforeAnchor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			tt.mod(&req)

			_, err := s.Submit(ctx, Caller{UserID: "u1"}, req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubmitFlagsTruncation(t *testing.T) {
	s, _, _ := newService(t)

	req := baseRequest()
	dates := make([]string, 0, 120)
	anchor := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 120; i++ {
		dates = append(dates, recurrence.FormatDate(anchor.AddDate(0, 0, i)))
	}
	req.Recurrence = &event.RecurrenceRequest{Pattern: recurrence.Custom, Dates: dates}

	res, err := s.Submit(context.Background(), Caller{UserID: "u1"}, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Truncated || len(res.Events) != recurrence.MaxInstances || res.Dropped != 21 {
		t.Fatalf("truncated=%v len=%d dropped=%d", res.Truncated, len(res.Events), res.Dropped)
	}
}

type failingEvents struct{}

func (failingEvents) InsertSeries(context.Context, []event.Event, *job.CreateRequest) error {
	return errors.New("db down")
}

func TestSubmitStoreFailure(t *testing.T) {
	db := memory.NewDB()
	pool := &countingPool{}
	s := NewService(db.Venues(), failingEvents{}, pool, nil, nil)

	_, err := s.Submit(context.Background(), Caller{UserID: "u1", Privileged: true}, baseRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if pool.n != 0 {
		t.Fatal("failed writes must not invalidate the pool")
	}
}

func TestSubmitRejectedRecurrenceCreatesNoVenue(t *testing.T) {
	s, db, _ := newService(t)
	ctx := context.Background()

	req := baseRequest()
	req.Recurrence = &event.RecurrenceRequest{Pattern: recurrence.Weekly, EndDate: strPtr("2024-12-01")}

	if _, err := s.Submit(ctx, Caller{UserID: "u1"}, req); !errors.Is(err, recurrence.ErrEndBeforeAnchor) {
		t.Fatalf("err = %v, want %v", err, recurrence.ErrEndBeforeAnchor)
	}

	venues, err := db.Venues().List(ctx, nil)
	if err != nil {
		t.Fatalf("list venues: %v", err)
	}
	if len(venues) != 0 {
		t.Fatalf("venues after rejected submit = %d, want 0", len(venues))
	}
}
