package listing

import (
	"cmp"
	"slices"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/venue"
)

// Priority ranks a promotion tier. Unknown or empty tiers rank as standard.
func Priority(t venue.Tier) int {
	switch t {
	case venue.TierFeatured:
		return 3
	case venue.TierPromoted:
		return 2
	default:
		return 1
	}
}

// Compare orders instances by tier (highest first), then date, then start time.
func Compare(a, b event.Event) int {
	if c := cmp.Compare(Priority(b.Venue.PromotionTier), Priority(a.Venue.PromotionTier)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Date, b.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.StartTime, b.StartTime)
}

// Sort applies the canonical listing order in place. Ties keep pool order.
func Sort(evs []event.Event) {
	slices.SortStableFunc(evs, Compare)
}
