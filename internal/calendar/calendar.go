// Package calendar renders listing results as an iCalendar feed.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/recurrence"
)

const (
	ProductID       = "-//Kingston Happenings//Events//EN"
	defaultDuration = 2 * time.Hour
)

type Options struct {
	Name     string
	Location *time.Location
	BaseURL  string
	Now      time.Time
}

// Render serializes evs into a PUBLISH calendar. Instance times are read as
// wall clock times in opts.Location.
func Render(evs []event.Event, opts Options) (string, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}
	cal.SetXWRTimezone(loc.String())

	for _, ev := range evs {
		if err := addEvent(cal, ev, loc, opts.BaseURL, now); err != nil {
			return "", fmt.Errorf("event %s: %w", ev.ID, err)
		}
	}

	return cal.Serialize(), nil
}

func addEvent(cal *ics.Calendar, ev event.Event, loc *time.Location, baseURL string, now time.Time) error {
	day, err := recurrence.ParseDate(ev.Date)
	if err != nil {
		return err
	}

	ve := cal.AddEvent(ev.ID + "@happenings")
	ve.SetDtStampTime(now)
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}
	ve.SetLocation(location(ev))

	if ev.AllDay {
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
	} else {
		start, err := wallClock(day, ev.StartTime, loc)
		if err != nil {
			return err
		}
		end := start.Add(defaultDuration)
		if ev.EndTime != nil {
			if end, err = wallClock(day, *ev.EndTime, loc); err != nil {
				return err
			}
			if !end.After(start) {
				end = end.AddDate(0, 0, 1)
			}
		}
		ve.SetStartAt(start)
		ve.SetEndAt(end)
	}

	if len(ev.Categories) > 0 {
		cats := make([]string, 0, len(ev.Categories))
		for _, c := range ev.Categories {
			cats = append(cats, string(c))
		}
		ve.AddProperty(ics.ComponentPropertyCategories, strings.Join(cats, ","))
	}

	switch {
	case ev.TicketURL != "":
		ve.SetURL(ev.TicketURL)
	case baseURL != "":
		ve.SetURL(strings.TrimRight(baseURL, "/") + "/events/" + ev.ID)
	}

	if ev.Status == event.StatusCancelled {
		ve.SetStatus(ics.ObjectStatusCancelled)
	}
	return nil
}

func wallClock(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", hhmm, err)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}

func location(ev event.Event) string {
	if ev.Venue.Address == "" {
		return ev.Venue.Name
	}
	return ev.Venue.Name + ", " + ev.Venue.Address
}
