package listing

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/holiday"
	"github.com/geocoder89/happenings/internal/recurrence"
)

type DateGroup struct {
	Date    string        `json:"date"`
	Holiday string        `json:"holiday,omitempty"`
	Events  []event.Event `json:"events"`
}

type VenueGroup struct {
	Venue  string        `json:"venue"`
	Tier   venue.Tier    `json:"promotionTier"`
	Events []event.Event `json:"events"`
}

// GroupByDate buckets instances by ISO date, ascending. Each bucket carries
// the day's holiday label, if any.
func GroupByDate(evs []event.Event) []DateGroup {
	byKey := make(map[string][]event.Event)
	keys := make([]string, 0)

	for _, ev := range evs {
		if _, ok := byKey[ev.Date]; !ok {
			keys = append(keys, ev.Date)
		}
		byKey[ev.Date] = append(byKey[ev.Date], ev)
	}
	slices.Sort(keys)

	out := make([]DateGroup, 0, len(keys))
	for _, k := range keys {
		bucket := byKey[k]
		Sort(bucket)

		g := DateGroup{Date: k, Events: bucket}
		if d, err := recurrence.ParseDate(k); err == nil {
			g.Holiday, _ = holiday.For(d)
		}
		out = append(out, g)
	}
	return out
}

// GroupByVenue buckets instances by venue name. Buckets sort by their
// highest tier, then alphabetically.
func GroupByVenue(evs []event.Event) []VenueGroup {
	byName := make(map[string]*VenueGroup)
	order := make([]*VenueGroup, 0)

	for _, ev := range evs {
		g, ok := byName[ev.Venue.Name]
		if !ok {
			g = &VenueGroup{Venue: ev.Venue.Name, Tier: venue.TierStandard}
			byName[ev.Venue.Name] = g
			order = append(order, g)
		}
		if Priority(ev.Venue.PromotionTier) > Priority(g.Tier) {
			g.Tier = ev.Venue.PromotionTier
		}
		g.Events = append(g.Events, ev)
	}

	col := collate.New(language.English, collate.IgnoreCase)
	slices.SortStableFunc(order, func(a, b *VenueGroup) int {
		if c := cmp.Compare(Priority(b.Tier), Priority(a.Tier)); c != 0 {
			return c
		}
		if c := col.CompareString(a.Venue, b.Venue); c != 0 {
			return c
		}
		return strings.Compare(a.Venue, b.Venue)
	})

	out := make([]VenueGroup, 0, len(order))
	for _, g := range order {
		Sort(g.Events)
		out = append(out, *g)
	}
	return out
}

func promoted(t venue.Tier) bool {
	return Priority(t) > Priority(venue.TierStandard)
}

// CapPromotedVenues keeps at most one instance per featured or promoted
// venue. The first one seen in evs wins; standard venues keep all of theirs.
func CapPromotedVenues(evs []event.Event) []event.Event {
	seen := make(map[string]struct{})
	out := make([]event.Event, 0, len(evs))

	for _, ev := range evs {
		if promoted(ev.Venue.PromotionTier) {
			key := ev.Venue.ID
			if key == "" {
				key = ev.Venue.Name
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, ev)
	}
	return out
}

// TodaysSpecials lists approved specials on today's date with the
// per-venue cap applied.
func TodaysSpecials(pool []event.Event, today time.Time) []event.Event {
	d := recurrence.Day(today)
	return CapPromotedVenues(Query(pool, Filter{Kind: KindSpecials, Date: &d}, today))
}
