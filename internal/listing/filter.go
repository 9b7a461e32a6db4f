package listing

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/recurrence"
)

type Kind string

const (
	KindEvents   Kind = "events"
	KindSpecials Kind = "specials"
	KindAll      Kind = "all"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindEvents, nil
	case KindEvents, KindSpecials, KindAll:
		return k, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

type PastWindow string

const (
	PastNone    PastWindow = "none"
	PastWeek    PastWindow = "week"
	PastMonth   PastWindow = "month"
	Past3Months PastWindow = "3months"
	Past6Months PastWindow = "6months"
)

// DefaultSpanDays is the rolling window (today plus the next two days) used
// when a public query names no dates.
const DefaultSpanDays = 3

func ParsePastWindow(s string) (PastWindow, error) {
	switch w := PastWindow(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return PastNone, nil
	case PastNone, PastWeek, PastMonth, Past3Months, Past6Months:
		return w, nil
	default:
		return "", fmt.Errorf("unknown past window %q", s)
	}
}

func (w PastWindow) Active() bool {
	return w != "" && w != PastNone
}

// Cutoff is the earliest day included by the window.
func (w PastWindow) Cutoff(today time.Time) time.Time {
	switch w {
	case PastWeek:
		return today.AddDate(0, 0, -7)
	case PastMonth:
		return today.AddDate(0, -1, 0)
	case Past3Months:
		return today.AddDate(0, -3, 0)
	case Past6Months:
		return today.AddDate(0, -6, 0)
	default:
		return today
	}
}

// Filter describes one listing query. Zero values disable a predicate.
type Filter struct {
	Kind Kind

	Date     *time.Time
	From     *time.Time
	To       *time.Time
	Upcoming bool
	Past     PastWindow

	Categories []event.Category
	Query      string
	FreeOnly   bool
	MaxPrice   *int

	// Featured keeps only instances an admin has pinned.
	Featured bool
	// IncludeCancelled lists cancelled instances alongside approved ones in
	// public queries. They keep their status so clients can mark them.
	IncludeCancelled bool
}

// Since is the earliest day a public query with f can match, so callers can
// load no more of the pool than needed.
func (f Filter) Since(today time.Time) time.Time {
	return f.since(recurrence.Day(today), true)
}

// ModerationSince is Since for the moderation queue, which has no floor
// unless a past window is named. The zero time means unbounded.
func (f Filter) ModerationSince(today time.Time) time.Time {
	return f.since(recurrence.Day(today), false)
}

// floor is the earliest day any query can reach: the past window's cutoff,
// else today for public queries. Admin queries without a window are
// unbounded.
func (f Filter) floor(today time.Time, public bool) (time.Time, bool) {
	switch {
	case f.Past.Active():
		return f.Past.Cutoff(today), true
	case public:
		return today, true
	default:
		return time.Time{}, false
	}
}

func (f Filter) since(today time.Time, public bool) time.Time {
	floor, bounded := f.floor(today, public)

	var lo time.Time
	switch {
	case f.Date != nil:
		lo = recurrence.Day(*f.Date)
	case f.From != nil:
		lo = recurrence.Day(*f.From)
	case f.To != nil:
	case f.Upcoming && !f.Past.Active():
		lo = today
	default:
		return floor
	}
	if bounded && floor.After(lo) {
		return floor
	}
	return lo
}

// Partition splits a pool into regular events and food/drink specials.
func Partition(pool []event.Event) (regular, specials []event.Event) {
	for _, ev := range pool {
		if ev.IsSpecial() {
			specials = append(specials, ev)
		} else {
			regular = append(regular, ev)
		}
	}
	return regular, specials
}

// Query returns the approved instances matching f, in listing order.
// today is the caller's current local day.
func Query(pool []event.Event, f Filter, today time.Time) []event.Event {
	return run(pool, f, today, true, func(ev event.Event) bool {
		return ev.Status == event.StatusApproved ||
			(f.IncludeCancelled && ev.Status == event.StatusCancelled)
	})
}

// AdminQuery is the moderation entry point. It has no default date window and
// returns pending instances unless other statuses are named.
func AdminQuery(pool []event.Event, f Filter, today time.Time, statuses ...event.Status) []event.Event {
	if len(statuses) == 0 {
		statuses = []event.Status{event.StatusPending}
	}
	return run(pool, f, today, false, func(ev event.Event) bool {
		return slices.Contains(statuses, ev.Status)
	})
}

func run(pool []event.Event, f Filter, today time.Time, public bool, visible func(event.Event) bool) []event.Event {
	today = recurrence.Day(today)
	inRange := dateRange(f, today, public)
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]event.Event, 0)
	for _, ev := range pool {
		if !visible(ev) || !kindMatches(f.Kind, ev) {
			continue
		}
		if !inRange(ev.Date) {
			continue
		}
		if f.Featured && !ev.Featured {
			continue
		}
		if len(f.Categories) > 0 && !hasAnyCategory(ev, f.Categories) {
			continue
		}
		if query != "" && !matchesText(ev, query) {
			continue
		}
		if f.FreeOnly {
			if !strings.EqualFold(ev.Price, "free") {
				continue
			}
		} else if f.MaxPrice != nil {
			if p, ok := ParsePrice(ev.Price); ok && p > *f.MaxPrice {
				continue
			}
		}
		out = append(out, ev)
	}

	Sort(out)
	return out
}

func kindMatches(k Kind, ev event.Event) bool {
	switch k {
	case KindSpecials:
		return ev.IsSpecial()
	case KindAll:
		return true
	default:
		return !ev.IsSpecial()
	}
}

// dateRange compares ISO date strings, which order the same as the dates.
// Every predicate is clamped to the query's floor.
func dateRange(f Filter, today time.Time, public bool) func(string) bool {
	lo := ""
	if floor, ok := f.floor(today, public); ok {
		lo = recurrence.FormatDate(floor)
	}
	atLeast := func(s, bound string) bool { return s >= bound && (lo == "" || s >= lo) }

	switch {
	case f.Date != nil:
		d := recurrence.FormatDate(*f.Date)
		return func(s string) bool { return s == d && atLeast(s, d) }

	case f.From != nil || f.To != nil:
		from, hi := "", ""
		if f.From != nil {
			from = recurrence.FormatDate(*f.From)
		}
		if f.To != nil {
			hi = recurrence.FormatDate(*f.To)
		}
		return func(s string) bool {
			return atLeast(s, from) && (hi == "" || s <= hi)
		}

	case f.Past.Active():
		return func(s string) bool { return atLeast(s, "") }

	case f.Upcoming:
		t := recurrence.FormatDate(today)
		return func(s string) bool { return atLeast(s, t) }

	case public:
		t := recurrence.FormatDate(today)
		hi := recurrence.FormatDate(today.AddDate(0, 0, DefaultSpanDays-1))
		return func(s string) bool { return atLeast(s, t) && s <= hi }

	default:
		return func(string) bool { return true }
	}
}

func hasAnyCategory(ev event.Event, allowed []event.Category) bool {
	for _, c := range ev.Categories {
		if slices.Contains(allowed, c) {
			return true
		}
	}
	return false
}

func matchesText(ev event.Event, q string) bool {
	return strings.Contains(strings.ToLower(ev.Title), q) ||
		strings.Contains(strings.ToLower(ev.Description), q) ||
		strings.Contains(strings.ToLower(ev.Venue.Name), q)
}

var priceRe = regexp.MustCompile(`\$?(\d+)`)

// ParsePrice extracts the first whole-dollar amount from a free-text price.
func ParsePrice(s string) (int, bool) {
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
