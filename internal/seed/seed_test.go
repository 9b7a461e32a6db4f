package seed_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/repo/memory"
	"github.com/geocoder89/happenings/internal/seed"
	"github.com/geocoder89/happenings/internal/submission"
)

var seedDay = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

const smallFixture = `
venues:
  - name: The Toucan
    address: 76 Princess St
    tier: promoted
events:
  - title: Tuesday Trivia
    description: Six rounds
    venue: the toucan
    in_days: 1
    start_time: "19:30"
    categories: [trivia]
    recurrence:
      pattern: weekly
      weeks: 3
  - title: Canada Day Fireworks
    description: Over the harbour
    venue: The Toucan
    date: "2025-07-01"
    start_time: "22:00"
    categories: [festival]
    featured: true
`

func newSeeder(db *memory.DB) *seed.Seeder {
	svc := submission.NewService(db.Venues(), db.Events(), nil, nil, nil)
	caller := submission.Caller{UserID: "seed-admin", Admin: true, Privileged: true}
	return seed.New(db.Venues(), db.Events(), svc, caller, nil)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"ok", smallFixture, ""},
		{"empty", "", "empty fixture"},
		{"unknown_key", "venues:\n  - name: X\n    addres: typo\n", "addres"},
		{"unknown_venue", "venues: []\nevents:\n  - title: T\n    venue: Nowhere\n    in_days: 1\n    start_time: \"10:00\"\n    categories: [concert]\n", "unknown venue"},
		{"bad_category", "venues:\n  - name: V\n    address: 1 St\nevents:\n  - title: T\n    venue: V\n    in_days: 1\n    start_time: \"10:00\"\n    categories: [karaoke]\n", "unknown category"},
		{"bad_tier", "venues:\n  - name: V\n    address: 1 St\n    tier: gold\n", "invalid promotion tier"},
		{"no_date", "venues:\n  - name: V\n    address: 1 St\nevents:\n  - title: T\n    venue: V\n    start_time: \"10:00\"\n    categories: [concert]\n", "date or in_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Load(strings.NewReader(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApply_ExpandsAndIsRerunnable(t *testing.T) {
	f, err := seed.Load(strings.NewReader(smallFixture))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	db := memory.NewDB()
	s := newSeeder(db)

	rep, err := s.Apply(context.Background(), f, seedDay)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// weekly from 06-03 to 06-24 is four dates, plus one single event
	if rep.VenuesCreated != 1 || rep.SeriesCreated != 2 || rep.Instances != 5 || rep.Featured != 1 {
		t.Fatalf("report = %+v", rep)
	}

	evs, err := db.Events().ListByStatus(context.Background(), []event.Status{event.StatusApproved}, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(evs) != 5 {
		t.Fatalf("stored %d approved instances", len(evs))
	}
	if evs[0].Date != "2025-06-03" || evs[0].Venue.PromotionTier != venue.TierPromoted {
		t.Fatalf("first instance = %s tier %s", evs[0].Date, evs[0].Venue.PromotionTier)
	}
	if last := evs[len(evs)-1]; last.Title != "Canada Day Fireworks" || !last.Featured || evs[0].Featured {
		t.Fatalf("featured flags: first=%v last=%s/%v", evs[0].Featured, last.Title, last.Featured)
	}

	rep, err = s.Apply(context.Background(), f, seedDay)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if rep.VenuesCreated != 0 || rep.SeriesCreated != 0 || rep.Skipped != 2 {
		t.Fatalf("rerun report = %+v", rep)
	}
}

func TestBundledFixtureLoads(t *testing.T) {
	file, err := os.Open("../../db/seed/fixtures.yaml")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	f, err := seed.Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	rep, err := newSeeder(memory.NewDB()).Apply(context.Background(), f, seedDay)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rep.SeriesCreated != len(f.Events) {
		t.Fatalf("report = %+v", rep)
	}
}
