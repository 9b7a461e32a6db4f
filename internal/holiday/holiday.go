// Package holiday labels calendar dates with the holidays Kingston
// listings call out.
package holiday

import (
	"fmt"
	"time"
)

var fixed = map[string]string{
	"1-1":   "New Year's Day 🎉",
	"2-14":  "Valentine's Day 💕",
	"3-17":  "St. Patrick's Day ☘️",
	"4-1":   "April Fools' Day 🃏",
	"5-4":   "Star Wars Day ⭐",
	"6-21":  "Summer Solstice ☀️",
	"7-1":   "Canada Day 🍁",
	"7-4":   "Independence Day 🇺🇸",
	"10-31": "Halloween 🎃",
	"11-11": "Remembrance Day 🌺",
	"12-24": "Christmas Eve 🎄",
	"12-25": "Christmas Day 🎁",
	"12-26": "Boxing Day 📦",
	"12-31": "New Year's Eve 🥂",
}

type floating struct {
	name    string
	month   time.Month
	weekday time.Weekday
	minDay  int
	maxDay  int
}

// Checked in order; the first match wins.
var floatingRules = []floating{
	{"Mother's Day 💐", time.May, time.Sunday, 8, 14},
	{"Father's Day 👔", time.June, time.Sunday, 15, 21},
	{"Thanksgiving 🦃", time.October, time.Monday, 8, 14},
	{"Labour Day 👷", time.September, time.Monday, 1, 7},
	{"Victoria Day 👑", time.May, time.Monday, 18, 24},
}

// For returns the holiday label for the calendar day of t, if any.
func For(t time.Time) (string, bool) {
	y, m, d := t.Date()

	if name, ok := fixed[fmt.Sprintf("%d-%d", int(m), d)]; ok {
		return name, true
	}

	wd := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Weekday()
	for _, r := range floatingRules {
		if r.month == m && r.weekday == wd && d >= r.minDay && d <= r.maxDay {
			return r.name, true
		}
	}

	return "", false
}

// Day is one labelled date.
type Day struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// Between lists the holidays in [from, to], both inclusive.
func Between(from, to time.Time) []Day {
	var out []Day
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if name, ok := For(d); ok {
			out = append(out, Day{Date: d.Format(time.DateOnly), Name: name})
		}
	}
	return out
}
