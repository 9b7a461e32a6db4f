package series

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/recurrence"
)

var ErrNoDates = errors.New("series needs at least one date")

// Input describes one submission to turn into concrete instances.
type Input struct {
	Template   event.Template
	Dates      []time.Time
	StartTime  string
	EndTime    *string
	Privileged bool

	// Pattern and End are carried onto every instance for display and bulk
	// moderation. Both are ignored for a single-date series.
	Pattern *recurrence.Pattern
	End     *time.Time

	Now time.Time
}

// Materialize builds one instance per date. The first date is the parent;
// every other instance points back at it.
func Materialize(in Input) ([]event.Event, error) {
	if len(in.Dates) == 0 {
		return nil, ErrNoDates
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	status := event.StatusPending
	if in.Privileged {
		status = event.StatusApproved
	}

	recurring := len(in.Dates) > 1

	var (
		pattern *recurrence.Pattern
		endDate *string
	)
	if recurring && in.Pattern != nil {
		p := *in.Pattern
		pattern = &p

		end := in.Dates[len(in.Dates)-1]
		if in.End != nil {
			end = *in.End
		}
		s := recurrence.FormatDate(end)
		endDate = &s
	}

	out := make([]event.Event, 0, len(in.Dates))
	var parentID string

	for i, d := range in.Dates {
		ev := event.Event{
			ID:                uuid.NewString(),
			Title:             in.Template.Title,
			Description:       in.Template.Description,
			Date:              recurrence.FormatDate(d),
			StartTime:         in.StartTime,
			EndTime:           copyString(in.EndTime),
			Venue:             in.Template.Venue,
			Categories:        append([]event.Category(nil), in.Template.Categories...),
			Price:             in.Template.Price,
			TicketURL:         in.Template.TicketURL,
			ImageURL:          in.Template.ImageURL,
			AllDay:            in.Template.AllDay,
			Status:            status,
			IsRecurring:       recurring,
			RecurrencePattern: pattern,
			RecurrenceEndDate: endDate,
			SubmittedBy:       copyString(in.Template.SubmittedBy),
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		if i == 0 {
			parentID = ev.ID
		} else {
			pid := parentID
			ev.ParentEventID = &pid
		}

		out = append(out, ev)
	}

	return out, nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
