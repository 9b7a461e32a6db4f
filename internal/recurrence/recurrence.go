package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

type Pattern string

const (
	Weekly   Pattern = "weekly"
	Biweekly Pattern = "biweekly"
	Monthly  Pattern = "monthly"
	Custom   Pattern = "custom"
)

func (p Pattern) IsValid() bool {
	switch p {
	case Weekly, Biweekly, Monthly, Custom:
		return true
	default:
		return false
	}
}

const (
	// MaxInstances bounds how many dates a single series can materialize.
	MaxInstances = 100
	// MaxWeeks bounds the distance between the anchor and the last date.
	MaxWeeks = 52

	DateLayout = "2006-01-02"
)

var (
	ErrMissingAnchor    = errors.New("recurrence start date is required")
	ErrUnknownPattern   = errors.New("unknown recurrence pattern")
	ErrEndBeforeAnchor  = errors.New("recurrence end date is before the start date")
	ErrSpanTooLong      = errors.New("recurrence spans more than 52 weeks")
	ErrDateBeforeAnchor = errors.New("custom date is before the start date")
	ErrNoCustomDates    = errors.New("custom recurrence needs at least one date")
)

// ValidationError is returned for rule input that must be fixed by the
// submitter. Reason is safe to show to end users.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// Rule describes how one submitted event repeats.
// Dates is only read for the Custom pattern.
type Rule struct {
	Anchor  time.Time
	Pattern Pattern
	End     *time.Time
	Dates   []time.Time
}

// Result is the expanded, ascending, duplicate-free date list.
// Truncated reports that MaxInstances was reached and Dropped dates were cut.
type Result struct {
	Dates     []time.Time
	Truncated bool
	Dropped   int
}

// Day strips the clock and zone from t, keeping its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// SpanLimit is the last date a series anchored at anchor may reach.
func SpanLimit(anchor time.Time) time.Time {
	return Day(anchor).AddDate(0, 0, 7*MaxWeeks)
}

func (r Rule) Validate() error {
	if r.Anchor.IsZero() {
		return invalid(ErrMissingAnchor, "a start date is required")
	}
	if !r.Pattern.IsValid() {
		return invalid(ErrUnknownPattern, "unknown recurrence pattern %q", r.Pattern)
	}

	anchor := Day(r.Anchor)
	limit := SpanLimit(anchor)

	if r.Pattern == Custom {
		if len(r.Dates) == 0 {
			return invalid(ErrNoCustomDates, "pick at least one date for a custom series")
		}
		for _, d := range r.Dates {
			d = Day(d)
			if d.Before(anchor) {
				return invalid(ErrDateBeforeAnchor, "date %s is before the start date %s", FormatDate(d), FormatDate(anchor))
			}
			if d.After(limit) {
				return invalid(ErrSpanTooLong, "date %s is more than %d weeks after the start date", FormatDate(d), MaxWeeks)
			}
		}
		return nil
	}

	if r.End == nil {
		return nil
	}

	end := Day(*r.End)
	if end.Before(anchor) {
		return invalid(ErrEndBeforeAnchor, "end date %s is before the start date %s", FormatDate(end), FormatDate(anchor))
	}
	if end.After(limit) {
		return invalid(ErrSpanTooLong, "end date %s is more than %d weeks after the start date", FormatDate(end), MaxWeeks)
	}
	return nil
}

// Expand turns a rule into concrete calendar dates. The anchor is always the
// first date. A missing end date means MaxWeeks after the anchor.
//
// Monthly series keep the anchor's day of month and clamp to the last day of
// shorter months (Jan 31 -> Feb 28 -> Mar 31).
func Expand(r Rule) (Result, error) {
	if err := r.Validate(); err != nil {
		return Result{}, err
	}

	anchor := Day(r.Anchor)

	var dates []time.Time

	if r.Pattern == Custom {
		dates = append([]time.Time{anchor}, r.Dates...)
	} else {
		end := SpanLimit(anchor)
		if r.End != nil {
			end = Day(*r.End)
		}

		rr, err := rrule.NewRRule(ruleOption(anchor, r.Pattern, end))
		if err != nil {
			return Result{}, fmt.Errorf("recurrence: build rule: %w", err)
		}
		dates = rr.All()
	}

	return capDates(normalize(dates)), nil
}

func ruleOption(anchor time.Time, p Pattern, until time.Time) rrule.ROption {
	opt := rrule.ROption{
		Dtstart: anchor,
		Until:   until,
	}

	switch p {
	case Weekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 1
	case Biweekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case Monthly:
		opt.Freq = rrule.MONTHLY
		opt.Interval = 1
		opt.Bymonthday, opt.Bysetpos = clampedMonthDay(anchor.Day())
	}

	return opt
}

// clampedMonthDay picks the anchor day, or the last existing day out of
// 28..day for months that are too short.
func clampedMonthDay(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}

	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}

func normalize(dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		out = append(out, Day(d))
	}

	slices.SortFunc(out, func(a, b time.Time) int {
		return a.Compare(b)
	})

	return slices.CompactFunc(out, func(a, b time.Time) bool {
		return a.Equal(b)
	})
}

func capDates(dates []time.Time) Result {
	if len(dates) <= MaxInstances {
		return Result{Dates: dates}
	}

	return Result{
		Dates:     dates[:MaxInstances],
		Truncated: true,
		Dropped:   len(dates) - MaxInstances,
	}
}
