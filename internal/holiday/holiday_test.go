package holiday

import (
	"testing"
	"time"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestFor(t *testing.T) {
	tests := []struct {
		date string
		want string
		ok   bool
	}{
		{"2025-12-25", "Christmas Day 🎁", true},
		{"2025-05-11", "Mother's Day 💐", true},
		{"2025-05-04", "Star Wars Day ⭐", true},
		{"2025-05-19", "Victoria Day 👑", true},
		{"2025-06-15", "Father's Day 👔", true},
		{"2025-09-01", "Labour Day 👷", true},
		{"2025-10-13", "Thanksgiving 🦃", true},
		{"2025-07-01", "Canada Day 🍁", true},
		{"2025-05-18", "", false},
		{"2025-03-05", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			got, ok := For(day(t, tt.date))
			if ok != tt.ok || got != tt.want {
				t.Fatalf("For(%s) = %q,%v want %q,%v", tt.date, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFor_IgnoresTimeOfDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	late := time.Date(2025, 12, 25, 23, 30, 0, 0, loc)
	if got, _ := For(late); got != "Christmas Day 🎁" {
		t.Fatalf("got %q", got)
	}
}

func TestBetween(t *testing.T) {
	got := Between(day(t, "2025-12-23"), day(t, "2026-01-01"))
	want := []string{"2025-12-24", "2025-12-25", "2025-12-26", "2025-12-31", "2026-01-01"}

	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i].Date != want[i] {
			t.Fatalf("index %d: got %s want %s", i, got[i].Date, want[i])
		}
	}
}
