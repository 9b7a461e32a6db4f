package event

import (
	"strings"

	"github.com/geocoder89/happenings/internal/domain/venue"
)

// TemplateFromRequest builds the shared series content once the venue has
// been resolved.
func TemplateFromRequest(req CreateEventRequest, v venue.Venue, submittedBy *string) Template {
	return Template{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Venue:       v,
		Categories:  append([]Category(nil), req.Categories...),
		Price:       strings.TrimSpace(req.Price),
		TicketURL:   req.TicketURL,
		ImageURL:    req.ImageURL,
		AllDay:      req.AllDay,
		SubmittedBy: submittedBy,
	}
}
