package event

import (
	"errors"
	"slices"
	"time"

	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/recurrence"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Event is one dated instance. Template fields are copied onto every
// instance of a series so each one can be moderated on its own.
type Event struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Date              string              `json:"date"`
	StartTime         string              `json:"startTime"`
	EndTime           *string             `json:"endTime,omitempty"`
	Venue             venue.Venue         `json:"venue"`
	Categories        []Category          `json:"categories"`
	Price             string              `json:"price,omitempty"`
	TicketURL         string              `json:"ticketUrl,omitempty"`
	ImageURL          string              `json:"imageUrl,omitempty"`
	AllDay            bool                `json:"isAllDay"`
	Featured          bool                `json:"featured"`
	Status            Status              `json:"status"`
	IsRecurring       bool                `json:"isRecurring"`
	RecurrencePattern *recurrence.Pattern `json:"recurrencePattern,omitempty"`
	RecurrenceEndDate *string             `json:"recurrenceEndDate,omitempty"`
	ParentEventID     *string             `json:"parentEventId,omitempty"`
	SubmittedBy       *string             `json:"-"`
	LikeCount         int                 `json:"likeCount"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// IsSpecial reports whether the instance is a food/drink deal rather than a
// general event.
func (e Event) IsSpecial() bool {
	return slices.Contains(e.Categories, CategoryFoodDeal)
}

// Published reports whether the instance is public: approved, or cancelled.
func (e Event) Published() bool {
	return e.Status == StatusApproved || e.Status == StatusCancelled
}

// SeriesID is the id shared by every instance of the event's series.
func (e Event) SeriesID() string {
	if e.ParentEventID != nil && *e.ParentEventID != "" {
		return *e.ParentEventID
	}
	return e.ID
}

// Template is the submitted content shared by all instances of a series.
type Template struct {
	Title       string
	Description string
	Venue       venue.Venue
	Categories  []Category
	Price       string
	TicketURL   string
	ImageURL    string
	AllDay      bool
	SubmittedBy *string
}

var (
	ErrNotFound          = errors.New("event not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrVenueRequired     = errors.New("venue is required")
)

// CanTransition reports whether moderation may move an instance from one
// status to another.
func CanTransition(from, to Status) bool {
	switch to {
	case StatusApproved, StatusRejected:
		return from == StatusPending
	case StatusCancelled:
		return from == StatusPending || from == StatusApproved
	default:
		return false
	}
}

type NewVenueRequest struct {
	Name    string `json:"name" binding:"required,min=2,max=120"`
	Address string `json:"address" binding:"required,min=3,max=200"`
}

type RecurrenceRequest struct {
	Pattern recurrence.Pattern `json:"pattern" binding:"required,oneof=weekly biweekly monthly custom"`
	EndDate *string            `json:"endDate" binding:"omitempty,datetime=2006-01-02"`
	Dates   []string           `json:"dates" binding:"omitempty,max=366,dive,datetime=2006-01-02"`
}

type UpdateFeaturedRequest struct {
	Featured *bool `json:"featured" binding:"required"`
}

type CreateEventRequest struct {
	Title       string             `json:"title" binding:"required,min=3,max=120"`
	Description string             `json:"description" binding:"required,max=2000"`
	Date        string             `json:"date" binding:"required,datetime=2006-01-02"`
	StartTime   string             `json:"startTime" binding:"required,datetime=15:04"`
	EndTime     *string            `json:"endTime" binding:"omitempty,datetime=15:04"`
	VenueID     string             `json:"venueId" binding:"omitempty,max=64"`
	NewVenue    *NewVenueRequest   `json:"newVenue"`
	Categories  []Category         `json:"categories" binding:"required,min=1,max=6,dive,oneof=concert food-deal trivia theatre sports festival market workshop nightlife family community 19plus activity"`
	Price       string             `json:"price" binding:"omitempty,max=60"`
	TicketURL   string             `json:"ticketUrl" binding:"omitempty,url"`
	ImageURL    string             `json:"imageUrl" binding:"omitempty,url"`
	AllDay      bool               `json:"isAllDay"`
	Recurrence  *RecurrenceRequest `json:"recurrence"`
}
